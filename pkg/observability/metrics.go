package observability

import (
	"context"
	"errors"

	"github.com/aretw0/cortex/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by the loop hooks.
type Metrics struct {
	steps        prometheus.Counter
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	sessions     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// Collectors that are already registered are reused, so several agents in
// one process can share a registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_steps_total",
			Help: "Total number of perceive/decide passes",
		}),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_tool_calls_total",
				Help: "Total number of tool calls by result",
			},
			[]string{"tool", "status"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cortex_tool_duration_seconds",
				Help:    "Duration of tool executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cortex_sessions_total",
				Help: "Total number of finished sessions by outcome",
			},
			[]string{"outcome"},
		),
	}

	var err error
	if m.steps, err = register(reg, m.steps); err != nil {
		return nil, err
	}
	if m.toolCalls, err = register(reg, m.toolCalls); err != nil {
		return nil, err
	}
	if m.toolDuration, err = register(reg, m.toolDuration); err != nil {
		return nil, err
	}
	if m.sessions, err = register(reg, m.sessions); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			m.steps.Inc()
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			status := "ok"
			if e.IsError {
				status = "error"
			}
			m.toolCalls.WithLabelValues(e.ToolName, status).Inc()
			m.toolDuration.WithLabelValues(e.ToolName).Observe(e.Duration.Seconds())
		},
		OnTerminate: func(ctx context.Context, e *domain.TerminateEvent) {
			m.sessions.WithLabelValues(string(e.Outcome)).Inc()
		},
	}
}
