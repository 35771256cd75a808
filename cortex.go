package cortex

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/cortex/internal/logging"
	"github.com/aretw0/cortex/internal/runtime"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
	"github.com/aretw0/cortex/pkg/registry"
	"github.com/aretw0/cortex/pkg/workflow"
)

// ErrNoPlanner is returned by New when no planner was configured.
var ErrNoPlanner = errors.New("cortex: a planner is required")

// Result summarizes a finished session.
type Result = runtime.Result

type builtinTool struct {
	tool domain.Tool
	fn   registry.ToolFunction
}

// Agent is the high-level entry point of the library.
// It wires the collaborators into the step loop and is safe for concurrent
// sessions as long as its collaborators are.
type Agent struct {
	loop       *runtime.Loop
	planner    ports.Planner
	perceiver  ports.Perceiver
	memory     ports.MemoryStore
	dispatcher ports.ToolDispatcher
	workflow   *workflow.Workflow
	profile    domain.Profile
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	builtins   []builtinTool
}

// Option defines a functional option for configuring the Agent.
type Option func(*Agent)

// WithPlanner sets the planner. It is required.
func WithPlanner(p ports.Planner) Option {
	return func(a *Agent) {
		a.planner = p
	}
}

// WithPerceiver sets the perception collaborator.
func WithPerceiver(p ports.Perceiver) Option {
	return func(a *Agent) {
		a.perceiver = p
	}
}

// WithMemory sets the memory store.
func WithMemory(m ports.MemoryStore) Option {
	return func(a *Agent) {
		a.memory = m
	}
}

// WithDispatcher sets the tool dispatcher. By default an empty registry is used.
func WithDispatcher(d ports.ToolDispatcher) Option {
	return func(a *Agent) {
		a.dispatcher = d
	}
}

// WithTool registers an in-process tool on the default registry.
func WithTool(tool domain.Tool, fn registry.ToolFunction) Option {
	return func(a *Agent) {
		a.builtins = append(a.builtins, builtinTool{tool: tool, fn: fn})
	}
}

// WithWorkflow sets the requirements that gate termination.
func WithWorkflow(wf *workflow.Workflow) Option {
	return func(a *Agent) {
		a.workflow = wf
	}
}

// WithProfile sets the session bounds.
func WithProfile(p domain.Profile) Option {
	return func(a *Agent) {
		a.profile = p
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Agent) {
		a.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// New builds an Agent.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{}
	for _, opt := range opts {
		opt(a)
	}

	if a.planner == nil {
		return nil, ErrNoPlanner
	}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	if a.dispatcher == nil {
		a.dispatcher = registry.New(registry.WithLogger(a.logger))
	}
	if len(a.builtins) > 0 {
		reg, ok := a.dispatcher.(*registry.Registry)
		if !ok {
			return nil, errors.New("cortex: WithTool requires the default registry dispatcher")
		}
		for _, b := range a.builtins {
			reg.Register(b.tool, b.fn)
		}
	}

	a.loop = runtime.New(a.planner, a.dispatcher,
		runtime.WithPerceiver(a.perceiver),
		runtime.WithMemory(a.memory),
		runtime.WithWorkflow(a.workflow),
		runtime.WithProfile(a.profile),
		runtime.WithLogger(a.logger),
		runtime.WithLifecycleHooks(a.hooks),
	)
	return a, nil
}

// Initialize discovers the tools of every registry backend. Failed backends
// are reported in the returned error but do not prevent the others from
// serving; the agent stays usable either way.
func (a *Agent) Initialize(ctx context.Context) error {
	reg, ok := a.dispatcher.(*registry.Registry)
	if !ok {
		return nil
	}
	return reg.Initialize(ctx)
}

// Run executes one session. It never panics and Result.Answer is never empty.
func (a *Agent) Run(ctx context.Context, input string) Result {
	return a.loop.Run(ctx, input)
}

// RunSession is Run with a caller-chosen session id.
func (a *Agent) RunSession(ctx context.Context, sessionID, input string) Result {
	return a.loop.RunSession(ctx, sessionID, input)
}

// Tools returns the tools currently known to the dispatcher.
func (a *Agent) Tools() []domain.Tool {
	return a.dispatcher.List()
}

// Dispatcher returns the dispatcher used by the agent.
func (a *Agent) Dispatcher() ports.ToolDispatcher {
	return a.dispatcher
}
