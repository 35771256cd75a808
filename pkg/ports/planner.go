package ports

import (
	"context"

	"github.com/aretw0/cortex/pkg/domain"
)

// PlanRequest carries everything a planner may use to pick the next action.
type PlanRequest struct {
	SessionID  string
	Input      string // Original request
	Query      string // Query for the current step
	Step       int    // One-based step number
	MaxSteps   int
	Perception domain.Perception
	Memories   []domain.MemoryItem
	Tools      []domain.Tool
	ToolsUsed  []string
}

// Planner returns raw text holding a single CALL or TERMINAL line.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (string, error)
}

// ActionPlanner is implemented by planners that produce typed actions directly.
// The loop prefers it over Plan when available.
type ActionPlanner interface {
	Planner
	PlanAction(ctx context.Context, req PlanRequest) (domain.Action, error)
}

// Perceiver extracts intent from free text.
// The returned text is expected to hold a JSON object; anything else is
// handled by the caller's fallback.
type Perceiver interface {
	Perceive(ctx context.Context, text string) (string, error)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(ctx context.Context, req PlanRequest) (string, error)

func (f PlannerFunc) Plan(ctx context.Context, req PlanRequest) (string, error) {
	return f(ctx, req)
}

// PerceiverFunc adapts a function to the Perceiver interface.
type PerceiverFunc func(ctx context.Context, text string) (string, error)

func (f PerceiverFunc) Perceive(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}
