package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/cortex/pkg/domain"
)

// LoggingHooks returns lifecycle hooks that write every event to logger.
// Step and tool-call events are logged at debug level.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_start", "session", e.SessionID, "step", e.Step)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_call", "session", e.SessionID, "step", e.Step, "tool_name", e.ToolName)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			logger.InfoContext(ctx, "tool_return",
				"session", e.SessionID,
				"step", e.Step,
				"tool_name", e.ToolName,
				"is_error", e.IsError,
				"duration", e.Duration,
			)
		},
		OnTerminate: func(ctx context.Context, e *domain.TerminateEvent) {
			logger.InfoContext(ctx, "terminate", "session", e.SessionID, "step", e.Step, "outcome", e.Outcome)
		},
	}
}
