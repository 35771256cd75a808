package runtime

import (
	"context"
	"time"

	"github.com/aretw0/cortex/pkg/domain"
)

func (s *session) base(t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: s.now(),
		Type:      t,
		SessionID: s.s.ID,
		Step:      s.s.Step,
	}
}

func (s *session) emitStepStart(ctx context.Context) {
	if s.hooks.OnStepStart == nil {
		return
	}
	s.hooks.OnStepStart(ctx, &domain.StepEvent{
		EventBase: s.base(domain.EventStepStart),
		Query:     s.query,
	})
}

func (s *session) emitToolCall(ctx context.Context, tool string, args map[string]any) {
	if s.hooks.OnToolCall == nil {
		return
	}
	s.hooks.OnToolCall(ctx, &domain.ToolEvent{
		EventBase: s.base(domain.EventToolCall),
		ToolName:  tool,
		Input:     args,
	})
}

func (s *session) emitToolReturn(ctx context.Context, tool string, output any, isError bool, d time.Duration) {
	if s.hooks.OnToolReturn == nil {
		return
	}
	s.hooks.OnToolReturn(ctx, &domain.ToolEvent{
		EventBase: s.base(domain.EventToolReturn),
		ToolName:  tool,
		Output:    output,
		IsError:   isError,
		Duration:  d,
	})
}

// emitTerminate runs outside the recovered region, so a panicking hook is
// contained here.
func (l *Loop) emitTerminate(ctx context.Context, s *session) {
	if l.hooks.OnTerminate == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("Terminate hook panicked", "session", s.s.ID, "panic", rec)
		}
	}()
	l.hooks.OnTerminate(ctx, &domain.TerminateEvent{
		EventBase: s.base(domain.EventTerminate),
		Outcome:   s.s.Outcome,
		Answer:    s.s.Answer,
	})
}
