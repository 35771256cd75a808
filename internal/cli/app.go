// Package cli wires a loaded configuration into a running agent and holds
// the helpers shared by the cortex commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/cortex"
	"github.com/aretw0/cortex/internal/cognition"
	"github.com/aretw0/cortex/internal/config"
	"github.com/aretw0/cortex/internal/llm"
	"github.com/aretw0/cortex/internal/logging"
	httpAdapter "github.com/aretw0/cortex/pkg/adapters/http"
	"github.com/aretw0/cortex/pkg/adapters/memory"
	"github.com/aretw0/cortex/pkg/adapters/redis"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/observability"
	"github.com/aretw0/cortex/pkg/persistence/middleware"
	"github.com/aretw0/cortex/pkg/ports"
	"github.com/aretw0/cortex/pkg/registry"
	"github.com/aretw0/cortex/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
)

// App is a fully wired agent together with the resources it owns.
type App struct {
	Agent    *cortex.Agent
	Registry *registry.Registry
	Logger   *slog.Logger
	Streams  *httpAdapter.StreamManager
	Locker   ports.DistributedLocker // nil unless the memory backend is redis
	Sessions *session.Manager

	closers []func() error
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	generator  llm.Generator
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// WithGenerator replaces the model configured in cfg.LLM.
func WithGenerator(g llm.Generator) BuildOption {
	return func(o *buildOptions) {
		o.generator = g
	}
}

// WithLogger replaces the logger configured in cfg.Log.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// WithRegisterer sets where session metrics are registered.
// Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) BuildOption {
	return func(o *buildOptions) {
		o.registerer = reg
	}
}

// NewLogger builds the logger described by cfg.
func NewLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(os.Stderr, level, logging.Format(cfg.Format)), nil
}

// Build creates the agent described by cfg. Backends that fail discovery
// are logged and skipped; the agent still starts.
func Build(ctx context.Context, cfg *config.Config, opts ...BuildOption) (*App, error) {
	o := buildOptions{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Logger: o.logger}
	if app.Logger == nil {
		logger, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		app.Logger = logger
	}

	gen := o.generator
	if gen == nil {
		var err error
		if gen, err = llm.New(ctx, cfg.LLM, app.Logger); err != nil {
			return nil, fmt.Errorf("creating model client: %w", err)
		}
	}

	backends, err := cfg.LoadBackends()
	if err != nil {
		return nil, err
	}
	reg, err := registry.FromConfig(backends,
		registry.WithLogger(app.Logger),
		registry.WithArgumentValidation(cfg.ValidateArgs),
	)
	if err != nil {
		return nil, err
	}
	app.Registry = reg

	wf, err := cfg.LoadWorkflow()
	if err != nil {
		return nil, err
	}

	store, err := app.memoryStore(cfg.Memory)
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewMetrics(o.registerer)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Streams = httpAdapter.NewStreamManager(app.Logger)

	agent, err := cortex.New(
		cortex.WithPlanner(cognition.NewPlanner(gen)),
		cortex.WithPerceiver(cognition.NewPerceiver(gen, app.toolNames)),
		cortex.WithMemory(store),
		cortex.WithDispatcher(reg),
		cortex.WithWorkflow(wf),
		cortex.WithProfile(cfg.Agent),
		cortex.WithLogger(app.Logger),
		cortex.WithLifecycleHooks(domain.Combine(
			observability.LoggingHooks(app.Logger),
			metrics.Hooks(),
			app.Streams.Hooks(),
		)),
	)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Agent = agent

	sessionOpts := []session.Option{session.WithLogger(app.Logger)}
	if app.Locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(app.Locker))
	}
	app.Sessions = session.NewManager(sessionOpts...)

	if err := agent.Initialize(ctx); err != nil {
		app.Logger.Warn("Some tool backends are unavailable", "err", err)
	}
	return app, nil
}

func (a *App) memoryStore(cfg config.MemoryConfig) (ports.MemoryStore, error) {
	store, err := a.backingStore(cfg)
	if err != nil || len(cfg.Redact) == 0 {
		return store, err
	}
	redact, err := middleware.NewRedactMiddleware(cfg.Redact)
	if err != nil {
		a.Close()
		return nil, err
	}
	return middleware.Chain(store, redact), nil
}

func (a *App) backingStore(cfg config.MemoryConfig) (ports.MemoryStore, error) {
	switch cfg.Backend {
	case "", config.MemoryInProcess:
		return memory.NewStore(memory.WithLimit(cfg.Limit)), nil
	case config.MemoryRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := redis.NewFromClient(client,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
			redis.WithMaxItems(cfg.Redis.MaxItems),
		)
		a.Locker = redis.NewLocker(client, cfg.Redis.Prefix)
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	return nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
}

func (a *App) toolNames() []string {
	tools := a.Registry.List()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

// Close releases the connections opened by Build.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
