package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepStart  EventType = "step_start"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
	EventTerminate  EventType = "terminate"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Step      int       `json:"step"`
}

// StepEvent is emitted when the loop starts a perceive/decide pass.
type StepEvent struct {
	EventBase
	Query string `json:"query"`
}

// ToolEvent represents a tool execution.
type ToolEvent struct {
	EventBase
	ToolName string        `json:"tool_name"`
	Input    any           `json:"input,omitempty"`
	Output   any           `json:"output,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// TerminateEvent is emitted once when a session ends.
type TerminateEvent struct {
	EventBase
	Outcome Outcome `json:"outcome"`
	Answer  string  `json:"answer"`
}

// LifecycleHooks defines callbacks for loop observability.
// Every field is optional.
type LifecycleHooks struct {
	OnStepStart  func(context.Context, *StepEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnTerminate  func(context.Context, *TerminateEvent)
}

// Combine returns hooks that invoke every set callback of each input in order.
func Combine(hooks ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range hooks {
		h := h
		if h.OnStepStart != nil {
			prev := out.OnStepStart
			out.OnStepStart = func(ctx context.Context, e *StepEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnStepStart(ctx, e)
			}
		}
		if h.OnToolCall != nil {
			prev := out.OnToolCall
			out.OnToolCall = func(ctx context.Context, e *ToolEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnToolCall(ctx, e)
			}
		}
		if h.OnToolReturn != nil {
			prev := out.OnToolReturn
			out.OnToolReturn = func(ctx context.Context, e *ToolEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnToolReturn(ctx, e)
			}
		}
		if h.OnTerminate != nil {
			prev := out.OnTerminate
			out.OnTerminate = func(ctx context.Context, e *TerminateEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnTerminate(ctx, e)
			}
		}
	}
	return out
}
