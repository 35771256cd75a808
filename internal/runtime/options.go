package runtime

import (
	"log/slog"

	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
	"github.com/aretw0/cortex/pkg/workflow"
)

// Option configures the Loop.
type Option func(*Loop)

// WithPerceiver sets the perception collaborator. Without one every step
// uses the keyword heuristics.
func WithPerceiver(p ports.Perceiver) Option {
	return func(l *Loop) {
		l.perceiver = p
	}
}

// WithMemory sets the memory store consulted and extended on every step.
func WithMemory(m ports.MemoryStore) Option {
	return func(l *Loop) {
		l.memory = m
	}
}

// WithWorkflow sets the requirements that gate termination.
func WithWorkflow(wf *workflow.Workflow) Option {
	return func(l *Loop) {
		l.workflow = wf
	}
}

// WithProfile sets the session bounds. Zero fields keep their defaults.
func WithProfile(p domain.Profile) Option {
	return func(l *Loop) {
		l.profile = p.WithDefaults()
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(l *Loop) {
		l.hooks = hooks
	}
}

// WithIDGenerator overrides how session ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(l *Loop) {
		l.newID = fn
	}
}
