package registry_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTransport is a scripted backend.
type stubTransport struct {
	tools   []domain.Tool
	listErr error
	panics  bool
	call    func(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error)
}

func (s *stubTransport) ListTools(ctx context.Context) ([]domain.Tool, error) {
	if s.panics {
		panic("backend exploded")
	}
	return s.tools, s.listErr
}

func (s *stubTransport) CallTool(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
	if s.call == nil {
		return domain.NewToolResult(name + " ok"), nil
	}
	return s.call(ctx, name, args)
}

func TestRegistry_InitializeIsolatesFailures(t *testing.T) {
	r := registry.New(
		registry.WithBackend(registry.Backend{Name: "broken", Transport: &stubTransport{listErr: errors.New("connection refused")}}),
		registry.WithBackend(registry.Backend{Name: "panicky", Transport: &stubTransport{panics: true}}),
		registry.WithBackend(registry.Backend{Name: "malformed", Transport: &stubTransport{tools: []domain.Tool{{Name: "ok"}, {}}}}),
		registry.WithBackend(registry.Backend{Name: "healthy", Transport: &stubTransport{tools: []domain.Tool{{Name: "search"}}}}),
	)

	err := r.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend broken")
	assert.Contains(t, err.Error(), "backend panicky")
	assert.Contains(t, err.Error(), "backend malformed")

	tools := r.List()
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Name)

	res, err := r.Call(context.Background(), "search", nil)
	require.NoError(t, err)
	assert.Equal(t, "search ok", res.Text)
}

func TestRegistry_LastBackendWins(t *testing.T) {
	first := &stubTransport{
		tools: []domain.Tool{{Name: "search"}, {Name: "fetch"}},
		call: func(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
			return domain.NewToolResult("first"), nil
		},
	}
	second := &stubTransport{
		tools: []domain.Tool{{Name: "search", Description: "newer"}},
		call: func(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
			return domain.NewToolResult("second"), nil
		},
	}

	r := registry.New()
	r.AddBackend(registry.Backend{Name: "a", Transport: first})
	r.AddBackend(registry.Backend{Name: "b", Transport: second})
	require.NoError(t, r.Initialize(context.Background()))

	res, err := r.Call(context.Background(), "search", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", res.Text)

	res, err = r.Call(context.Background(), "fetch", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", res.Text)

	tool, backend, ok := r.Lookup("search")
	require.True(t, ok)
	assert.Equal(t, "b", backend)
	assert.Equal(t, "newer", tool.Description)

	names := []string{}
	for _, tool := range r.List() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"fetch", "search"}, names)
}

func TestRegistry_CallUnknownTool(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Initialize(context.Background()))

	_, err := r.Call(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}

func TestRegistry_CallWrapsErrors(t *testing.T) {
	plain := &stubTransport{
		tools: []domain.Tool{{Name: "plain"}},
		call: func(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
			return domain.ToolResult{}, errors.New("boom")
		},
	}
	typed := &stubTransport{
		tools: []domain.Tool{{Name: "typed"}},
		call: func(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
			return domain.ToolResult{}, &domain.ToolExecutionError{Class: domain.ClassValidation, Message: "bad id"}
		},
	}
	slow := &stubTransport{
		tools: []domain.Tool{{Name: "slow"}},
		call: func(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
			<-ctx.Done()
			return domain.ToolResult{}, ctx.Err()
		},
	}

	r := registry.New(
		registry.WithBackend(registry.Backend{Name: "plain-backend", Transport: plain}),
		registry.WithBackend(registry.Backend{Name: "typed-backend", Transport: typed}),
		registry.WithBackend(registry.Backend{Name: "slow-backend", Timeout: 20 * time.Millisecond, Transport: slow}),
	)
	require.NoError(t, r.Initialize(context.Background()))

	var te *domain.ToolExecutionError

	_, err := r.Call(context.Background(), "plain", nil)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "plain", te.Tool)
	assert.Equal(t, "plain-backend", te.Backend)
	assert.Equal(t, domain.ClassFailure, te.Class)
	assert.Equal(t, "boom", te.Message)

	_, err = r.Call(context.Background(), "typed", nil)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "typed", te.Tool)
	assert.Equal(t, "typed-backend", te.Backend)
	assert.Equal(t, domain.ClassValidation, te.Class)

	_, err = r.Call(context.Background(), "slow", nil)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, domain.ClassUnavailable, te.Class)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry_Register(t *testing.T) {
	r := registry.New()
	r.Register(domain.Tool{Name: "add"}, func(ctx context.Context, args map[string]any) (any, error) {
		a, _ := args["a"].(int)
		b, _ := args["b"].(int)
		return map[string]any{"sum": a + b}, nil
	})

	res, err := r.Call(context.Background(), "add", map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sum": float64(5)}, res.Structured)

	// Builtins survive a rediscovery.
	require.NoError(t, r.Initialize(context.Background()))
	_, backend, ok := r.Lookup("add")
	require.True(t, ok)
	assert.Equal(t, "builtin", backend)
}

func TestRegistry_ArgumentValidation(t *testing.T) {
	tool := domain.Tool{
		Name: "search",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"q":     map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer"},
			},
			"required": []any{"q"},
		},
	}
	var got map[string]any
	fn := func(ctx context.Context, args map[string]any) (any, error) {
		got = args
		return "ok", nil
	}

	r := registry.New(registry.WithArgumentValidation(true))
	r.Register(tool, fn)

	// Scalars are converted toward the declared types.
	_, err := r.Call(context.Background(), "search", map[string]any{"q": 2024, "limit": "5"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"q": "2024", "limit": int64(5)}, got)

	got = nil
	_, err = r.Call(context.Background(), "search", map[string]any{"limit": "many"})
	var te *domain.ToolExecutionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, domain.ClassValidation, te.Class)
	assert.Equal(t, "search", te.Tool)
	assert.Equal(t, "builtin", te.Backend)
	assert.Contains(t, te.Message, `field "q": required`)
	assert.Nil(t, got, "backend must not be called")

	// Disabled by default.
	plain := registry.New()
	plain.Register(tool, fn)
	_, err = plain.Call(context.Background(), "search", map[string]any{"limit": "many"})
	assert.NoError(t, err)
}

func TestLoadBackends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backends.yaml")
	content := `
backends:
  - name: search
    command: ./search-server
    args: ["--stdio"]
    env:
      API_KEY: xyz
  - name: sheets
    url: http://localhost:9000
    timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfgs, err := registry.LoadBackends(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, registry.KindProcess, cfgs[0].ResolvedKind())
	assert.Equal(t, []string{"--stdio"}, cfgs[0].Args)
	assert.Equal(t, "xyz", cfgs[0].Env["API_KEY"])
	assert.Equal(t, registry.KindNetwork, cfgs[1].ResolvedKind())
	assert.Equal(t, 5*time.Second, cfgs[1].Timeout)

	r, err := registry.FromConfig(cfgs)
	require.NoError(t, err)
	assert.NotNil(t, r)

	missing, err := registry.LoadBackends(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = registry.NewTransport(registry.BackendConfig{Name: "x", Kind: "carrier-pigeon"})
	assert.Error(t, err)
}
