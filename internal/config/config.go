// Package config loads the cortex configuration from a YAML file with
// CORTEX_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/cortex/internal/inbox"
	"github.com/aretw0/cortex/internal/llm"
	"github.com/aretw0/cortex/internal/logging"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/registry"
	"github.com/aretw0/cortex/pkg/workflow"
	"github.com/spf13/viper"
)

// Memory backends.
const (
	MemoryInProcess = "memory"
	MemoryRedis     = "redis"
)

// Config is the top-level cortex configuration.
type Config struct {
	Agent    domain.Profile           `mapstructure:"agent"`
	LLM      llm.Config               `mapstructure:"llm"`
	Backends []registry.BackendConfig `mapstructure:"backends"`

	// ValidateArgs checks call arguments against each tool's JSON schema.
	ValidateArgs bool `mapstructure:"validate_args"`

	// BackendsFile is read with yaml.v3, which keeps the case of env keys.
	BackendsFile string `mapstructure:"backends_file"`

	Workflow WorkflowConfig `mapstructure:"workflow"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Inbox    inbox.Config   `mapstructure:"inbox"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// WorkflowConfig holds the required steps, inline or in a separate file.
// A relative File is resolved against the directory of the config file.
type WorkflowConfig struct {
	File                string `mapstructure:"file"`
	workflow.Definition `mapstructure:",squash"`
}

// MemoryConfig selects the memory store.
type MemoryConfig struct {
	Backend string      `mapstructure:"backend"`
	Limit   int         `mapstructure:"limit"` // In-process store only
	Redis   RedisConfig `mapstructure:"redis"`

	// Redact lists regular expressions; structured payload keys matching
	// any of them are masked before items are stored.
	Redact []string `mapstructure:"redact"`
}

// RedisConfig configures the Redis memory store and locker.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	MaxItems int           `mapstructure:"max_items"`
}

// ServerConfig controls the HTTP gateway and the MCP SSE server.
type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	Token   string `mapstructure:"token"`
	MCPPort int    `mapstructure:"mcp_port"`
	Proxy   bool   `mapstructure:"proxy"` // Expose backend tools on the MCP server
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Agent: domain.DefaultProfile(),
		LLM: llm.Config{
			Provider: llm.ProviderGemini,
			Model:    llm.DefaultGeminiModel,
		},
		Memory: MemoryConfig{
			Backend: MemoryInProcess,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "cortex:memory:"},
		},
		Server: ServerConfig{Addr: ":8080", MCPPort: 8081},
		Log:    LogConfig{Level: "info", Format: string(logging.FormatText)},
	}
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix CORTEX_).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	// Environment
	v.SetEnvPrefix("CORTEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "CORTEX_LLM_API_KEY", "GEMINI_API_KEY")

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.Agent = cfg.Agent.WithDefaults()

	if path != "" {
		base := filepath.Dir(path)
		cfg.Workflow.File = resolve(base, cfg.Workflow.File)
		cfg.BackendsFile = resolve(base, cfg.BackendsFile)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("agent.max_steps", d.Agent.MaxSteps)
	v.SetDefault("agent.max_retries_per_step", d.Agent.MaxRetriesPerStep)
	v.SetDefault("agent.max_consecutive_failures", d.Agent.MaxConsecutiveFailures)
	v.SetDefault("agent.max_tool_attempts", d.Agent.MaxToolAttempts)
	v.SetDefault("agent.repeat_limit", d.Agent.RepeatLimit)
	v.SetDefault("agent.fingerprint_width", d.Agent.FingerprintWidth)
	v.SetDefault("agent.memory.top_k", d.Agent.Memory.TopK)
	v.SetDefault("agent.memory.global", false)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("backends_file", "")
	v.SetDefault("validate_args", false)
	v.SetDefault("workflow.file", "")
	v.SetDefault("memory.backend", d.Memory.Backend)
	v.SetDefault("memory.redis.addr", d.Memory.Redis.Addr)
	v.SetDefault("memory.redis.password", "")
	v.SetDefault("memory.redis.prefix", d.Memory.Redis.Prefix)
	v.SetDefault("inbox.receive_tool", "")
	v.SetDefault("inbox.send_tool", "")
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.token", "")
	v.SetDefault("server.mcp_port", d.Server.MCPPort)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Validate checks the configuration for logical errors.
// It returns all the problems found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("config: log.level: %w", err))
	}
	switch logging.Format(c.Log.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("config: log.format must be one of [text, json], got %q", c.Log.Format))
	}

	switch c.LLM.Provider {
	case llm.ProviderGemini, llm.ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("config: llm.provider must be one of [gemini, ollama], got %q", c.LLM.Provider))
	}

	switch c.Memory.Backend {
	case MemoryInProcess:
	case MemoryRedis:
		if c.Memory.Redis.Addr == "" {
			errs = append(errs, errors.New("config: memory.redis.addr must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: memory.backend must be one of [memory, redis], got %q", c.Memory.Backend))
	}

	seen := map[string]bool{}
	for i, b := range c.Backends {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("config: backends[%d].name must not be empty", i))
			continue
		}
		if seen[b.Name] {
			errs = append(errs, fmt.Errorf("config: backend %q is declared twice", b.Name))
		}
		seen[b.Name] = true
		switch b.ResolvedKind() {
		case registry.KindProcess, registry.KindNetwork:
		default:
			errs = append(errs, fmt.Errorf("config: backend %q: kind must be process or network, got %q", b.Name, b.Kind))
		}
	}

	if c.Server.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
			errs = append(errs, fmt.Errorf("config: server.addr must be a valid host:port address, got %q: %w", c.Server.Addr, err))
		}
	}
	if c.Server.MCPPort < 0 || c.Server.MCPPort > 65535 {
		errs = append(errs, fmt.Errorf("config: server.mcp_port must be between 0 and 65535, got %d", c.Server.MCPPort))
	}

	if c.Inbox.SendTool != "" && c.Inbox.ReceiveTool == "" {
		errs = append(errs, errors.New("config: inbox.send_tool requires inbox.receive_tool"))
	}
	return errs
}

// LoadBackends returns the inline backends followed by those of BackendsFile.
func (c *Config) LoadBackends() ([]registry.BackendConfig, error) {
	backends := append([]registry.BackendConfig{}, c.Backends...)
	if c.BackendsFile == "" {
		return backends, nil
	}
	fromFile, err := registry.LoadBackends(c.BackendsFile)
	if err != nil {
		return nil, err
	}
	return append(backends, fromFile...), nil
}

// LoadWorkflow compiles the configured workflow. It returns nil when no
// requirement, capture or guidance is configured.
func (c *Config) LoadWorkflow() (*workflow.Workflow, error) {
	def := c.Workflow.Definition
	if c.Workflow.File != "" {
		fromFile, err := workflow.Load(c.Workflow.File)
		if err != nil {
			return nil, err
		}
		def.Requirements = append(def.Requirements, fromFile.Requirements...)
		def.Captures = append(def.Captures, fromFile.Captures...)
		if len(fromFile.Guidance) > 0 && def.Guidance == nil {
			def.Guidance = map[string]string{}
		}
		for tool, text := range fromFile.Guidance {
			def.Guidance[tool] = text
		}
	}
	if len(def.Requirements) == 0 && len(def.Captures) == 0 && len(def.Guidance) == 0 {
		return nil, nil
	}
	return workflow.Compile(def)
}
