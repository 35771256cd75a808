package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/cortex"
	"github.com/aretw0/cortex/internal/cli"
	"github.com/aretw0/cortex/internal/config"
	"github.com/aretw0/cortex/internal/llm"
	"github.com/aretw0/cortex/internal/logging"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted answers planner prompts with a terminal line and perceiver
// prompts with a small JSON record.
func scripted(answer string) llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Reply with exactly one line") {
			return "TERMINAL: " + answer, nil
		}
		return `{"intent": "greet"}`, nil
	})
}

func build(t *testing.T, cfg *config.Config) *cli.App {
	t.Helper()
	app, err := cli.Build(context.Background(), cfg,
		cli.WithGenerator(scripted("hello there")),
		cli.WithLogger(logging.NewNop()),
		cli.WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestBuild_InProcessMemory(t *testing.T) {
	app := build(t, config.Default())

	assert.Nil(t, app.Locker)
	assert.Empty(t, app.Agent.Tools())

	res := app.Agent.Run(context.Background(), "say hello")
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.Equal(t, "hello there", res.Answer)
}

func TestBuild_RedisMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Memory.Backend = config.MemoryRedis
	cfg.Memory.Redis.Addr = mr.Addr()
	cfg.Memory.Redis.Prefix = "test:"

	app := build(t, cfg)
	require.NotNil(t, app.Locker)

	unlock, err := app.Locker.Lock(context.Background(), "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:job"))
	require.NoError(t, unlock(context.Background()))
	assert.False(t, mr.Exists("test:lock:job"))

	res := app.Sessions.Guard(app.Agent).RunSession(context.Background(), "s-1", "say hello")
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.False(t, mr.Exists("test:lock:session:s-1"), "session lock released")
}

func TestBuild_UnknownMemoryBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.Backend = "sqlite"

	_, err := cli.Build(context.Background(), cfg,
		cli.WithGenerator(scripted("x")),
		cli.WithLogger(logging.NewNop()),
		cli.WithRegisterer(prometheus.NewRegistry()),
	)
	assert.ErrorContains(t, err, "unknown memory backend")
}

func TestBuild_InvalidRedactPattern(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.Redact = []string{"("}

	_, err := cli.Build(context.Background(), cfg,
		cli.WithGenerator(scripted("x")),
		cli.WithLogger(logging.NewNop()),
		cli.WithRegisterer(prometheus.NewRegistry()),
	)
	assert.ErrorContains(t, err, "redact pattern")
}

func TestBuild_UnreachableBackendIsTolerated(t *testing.T) {
	cfg := config.Default()
	cfg.Backends = []registry.BackendConfig{
		{Name: "remote", URL: "http://127.0.0.1:1", Timeout: time.Second},
	}

	app := build(t, cfg)
	assert.Empty(t, app.Agent.Tools())

	res := app.Agent.Run(context.Background(), "say hello")
	assert.Equal(t, "hello there", res.Answer)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, cli.WriteJSON(&buf, cortex.Result{
		SessionID: "s1",
		Answer:    "42",
		Outcome:   domain.OutcomeSuccess,
		Steps:     2,
		Cycles:    3,
	}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "s1", got["session_id"])
	assert.Equal(t, "42", got["answer"])
	assert.Equal(t, "success", got["outcome"])
	assert.Equal(t, []any{}, got["tools_used"])
	assert.NotContains(t, got, "vars")
}

func TestSummary(t *testing.T) {
	out := cli.Summary(cortex.Result{
		Answer:    "The sum is 5.",
		Outcome:   domain.OutcomePartial,
		Steps:     4,
		ToolsUsed: []string{"add", "format"},
		Vars:      map[string]string{"link": "https://example.com/r/1", "id": "7"},
	})

	assert.True(t, strings.HasPrefix(out, "The sum is 5."))
	assert.Contains(t, out, "*partial* after 4 step(s) using `add`, `format`")
	assert.Less(t, strings.Index(out, "- id: 7"), strings.Index(out, "- link: https://example.com/r/1"))
}

func TestWriteAnswer_Plain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, cli.WriteAnswer(&buf, nil, cortex.Result{Answer: "done", Outcome: domain.OutcomeSuccess, Steps: 1}))
	assert.Equal(t, "done\n\n---\n\n*success* after 1 step(s)\n", buf.String())
}
