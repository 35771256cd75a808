package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/cortex/internal/logging"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string][]*dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := map[string][]*dto.Metric{}
	for _, f := range families {
		out[f.GetName()] = f.GetMetric()
	}
	return out
}

func label(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	ctx := context.Background()
	hooks := m.Hooks()
	hooks.OnStepStart(ctx, &domain.StepEvent{})
	hooks.OnStepStart(ctx, &domain.StepEvent{})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "search", Duration: 200 * time.Millisecond})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "search", IsError: true})
	hooks.OnTerminate(ctx, &domain.TerminateEvent{Outcome: domain.OutcomeSuccess})

	metrics := gather(t, reg)

	require.Len(t, metrics["cortex_steps_total"], 1)
	assert.Equal(t, 2.0, metrics["cortex_steps_total"][0].GetCounter().GetValue())

	calls := map[string]float64{}
	for _, c := range metrics["cortex_tool_calls_total"] {
		calls[label(c, "tool")+"/"+label(c, "status")] = c.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"search/ok": 1, "search/error": 1}, calls)

	require.Len(t, metrics["cortex_tool_duration_seconds"], 1)
	assert.Equal(t, uint64(2), metrics["cortex_tool_duration_seconds"][0].GetHistogram().GetSampleCount())

	require.Len(t, metrics["cortex_sessions_total"], 1)
	assert.Equal(t, "success", label(metrics["cortex_sessions_total"][0], "outcome"))
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	second, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	first.Hooks().OnStepStart(context.Background(), &domain.StepEvent{})
	second.Hooks().OnStepStart(context.Background(), &domain.StepEvent{})

	assert.Equal(t, 2.0, gather(t, reg)["cortex_steps_total"][0].GetCounter().GetValue())
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelDebug, logging.FormatJSON)
	hooks := domain.Combine(observability.LoggingHooks(logger))

	ctx := context.Background()
	base := domain.EventBase{SessionID: "s1", Step: 1}
	hooks.OnStepStart(ctx, &domain.StepEvent{EventBase: base})
	hooks.OnToolCall(ctx, &domain.ToolEvent{EventBase: base, ToolName: "search"})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{EventBase: base, ToolName: "search"})
	hooks.OnTerminate(ctx, &domain.TerminateEvent{EventBase: base, Outcome: domain.OutcomePartial})

	out := buf.String()
	assert.Contains(t, out, `"msg":"step_start"`)
	assert.Contains(t, out, `"msg":"tool_call"`)
	assert.Contains(t, out, `"tool_name":"search"`)
	assert.Contains(t, out, `"outcome":"partial"`)
	assert.Contains(t, out, `"session":"s1"`)
}
