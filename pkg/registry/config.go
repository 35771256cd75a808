package registry

import (
	"fmt"
	"os"
	"time"

	"github.com/aretw0/cortex/pkg/adapters/network"
	"github.com/aretw0/cortex/pkg/adapters/process"
	"github.com/aretw0/cortex/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Kind names the transport used to reach a backend.
type Kind string

const (
	KindProcess Kind = "process" // Subprocess per call speaking MCP over stdio
	KindNetwork Kind = "network" // HTTP request/response
	KindBuiltin Kind = "builtin" // In-process Go functions
)

// BackendConfig describes a backend in configuration files.
type BackendConfig struct {
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	Kind Kind   `yaml:"kind" json:"kind" mapstructure:"kind"`

	// Process transport
	Command string            `yaml:"command,omitempty" json:"command,omitempty" mapstructure:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty" mapstructure:"args"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty" mapstructure:"env"`

	// Network transport
	URL   string `yaml:"url,omitempty" json:"url,omitempty" mapstructure:"url"`
	Token string `yaml:"token,omitempty" json:"token,omitempty" mapstructure:"token"`

	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" mapstructure:"timeout"`
}

// ResolvedKind returns Kind, inferring it from Command or URL when empty.
func (c BackendConfig) ResolvedKind() Kind {
	switch {
	case c.Kind != "":
		return c.Kind
	case c.Command != "":
		return KindProcess
	case c.URL != "":
		return KindNetwork
	}
	return ""
}

// ConfigFile represents the structure of backends.yaml.
type ConfigFile struct {
	Backends []BackendConfig `yaml:"backends" json:"backends"`
}

// LoadBackends reads backend configurations from a YAML or JSON file.
// A missing file yields no backends.
func LoadBackends(path string) ([]BackendConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backends config: %w", err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse backends config %s: %w", path, err)
	}
	return cfg.Backends, nil
}

// NewTransport builds the transport described by cfg.
// When Kind is empty it is inferred from Command or URL.
func NewTransport(cfg BackendConfig) (ports.Transport, error) {
	switch cfg.ResolvedKind() {
	case KindProcess:
		if cfg.Command == "" {
			return nil, fmt.Errorf("process backend %s: command is required", cfg.Name)
		}
		return process.New(process.Config{
			Command: cfg.Command,
			Args:    cfg.Args,
			Env:     cfg.Env,
		}), nil
	case KindNetwork:
		if cfg.URL == "" {
			return nil, fmt.Errorf("network backend %s: url is required", cfg.Name)
		}
		return network.New(network.Config{
			BaseURL: cfg.URL,
			Token:   cfg.Token,
		}), nil
	default:
		return nil, fmt.Errorf("backend %s: unknown kind %q", cfg.Name, cfg.Kind)
	}
}

// FromConfig creates a registry with one backend per configuration entry.
// Discovery does not happen until Initialize is called.
func FromConfig(cfgs []BackendConfig, opts ...Option) (*Registry, error) {
	r := New(opts...)
	for _, cfg := range cfgs {
		t, err := NewTransport(cfg)
		if err != nil {
			return nil, err
		}
		r.AddBackend(Backend{Name: cfg.Name, Kind: cfg.ResolvedKind(), Timeout: cfg.Timeout, Transport: t})
	}
	return r, nil
}
