/*
Package observability provides lifecycle hooks for monitoring the cortex agent.

Hooks are plain domain.LifecycleHooks values, so they compose with
domain.Combine:

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := domain.Combine(observability.LoggingHooks(logger), metrics.Hooks())
	agent, _ := cortex.New(cortex.WithPlanner(p), cortex.WithLifecycleHooks(hooks))

# Metrics

  - cortex_steps_total: perceive/decide passes.
  - cortex_tool_calls_total{tool,status}: dispatched calls by result.
  - cortex_tool_duration_seconds{tool}: call latency.
  - cortex_sessions_total{outcome}: finished sessions.
*/
package observability
