package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/cortex/internal/logging"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
	"github.com/aretw0/cortex/pkg/schema"
)

// DefaultTimeout bounds discovery and calls for backends without their own timeout.
const DefaultTimeout = 30 * time.Second

// Backend is an independently configured tool provider.
type Backend struct {
	Name      string
	Kind      Kind
	Timeout   time.Duration
	Transport ports.Transport
}

type binding struct {
	backend *Backend
	tool    domain.Tool
}

// Registry presents the tools of every backend under a single namespace.
// It implements ports.ToolDispatcher.
type Registry struct {
	mu             sync.RWMutex
	backends       []*Backend
	tools          map[string]binding
	builtin        *FuncTransport
	defaultTimeout time.Duration
	validateArgs   bool
	logger         *slog.Logger
}

var _ ports.ToolDispatcher = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for discovery diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithDefaultTimeout sets the timeout used by backends that declare none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.defaultTimeout = d
	}
}

// WithArgumentValidation checks arguments against the tool's published
// JSON schema before calling the backend. Scalars are first converted toward
// the declared types; mismatches fail with the validation class.
func WithArgumentValidation(enabled bool) Option {
	return func(r *Registry) {
		r.validateArgs = enabled
	}
}

// WithBackend appends a backend. Backends are discovered in the order added.
func WithBackend(b Backend) Option {
	return func(r *Registry) {
		r.AddBackend(b)
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		tools:          make(map[string]binding),
		defaultTimeout: DefaultTimeout,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddBackend appends a backend. Its tools become callable after Initialize.
func (r *Registry) AddBackend(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends = append(r.backends, &b)
}

// Register adds an in-process tool and binds it immediately.
// If a tool with the same name exists, it is overwritten.
func (r *Registry) Register(tool domain.Tool, fn ToolFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.builtin == nil {
		r.builtin = NewFuncTransport()
		r.backends = append(r.backends, &Backend{Name: "builtin", Kind: KindBuiltin, Transport: r.builtin})
	}
	r.builtin.Register(tool, fn)

	for _, b := range r.backends {
		if b.Transport == r.builtin {
			r.tools[tool.Name] = binding{backend: b, tool: tool}
			break
		}
	}
}

// Initialize discovers the tools of every backend, one at a time.
// A backend that fails contributes no tools and does not affect the others;
// all failures are returned joined. When two backends expose the same name,
// the later one wins.
func (r *Registry) Initialize(ctx context.Context) error {
	r.mu.RLock()
	backends := append([]*Backend(nil), r.backends...)
	r.mu.RUnlock()

	tools := make(map[string]binding)
	var errs []error
	for _, b := range backends {
		listed, err := r.discover(ctx, b)
		if err != nil {
			r.logger.Warn("Backend discovery failed", "backend", b.Name, "kind", b.Kind, "err", err)
			errs = append(errs, fmt.Errorf("backend %s: %w", b.Name, err))
			continue
		}
		for _, tool := range listed {
			if prev, ok := tools[tool.Name]; ok && prev.backend != b {
				r.logger.Debug("Tool rebound", "tool", tool.Name, "from", prev.backend.Name, "to", b.Name)
			}
			tools[tool.Name] = binding{backend: b, tool: tool}
		}
		r.logger.Info("Backend discovered", "backend", b.Name, "kind", b.Kind, "tools", len(listed))
	}

	r.mu.Lock()
	r.tools = tools
	r.mu.Unlock()

	return errors.Join(errs...)
}

func (r *Registry) discover(ctx context.Context, b *Backend) (tools []domain.Tool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout(b))
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("discovery panicked: %v", rec)
		}
	}()

	tools, err = b.Transport.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	for i, tool := range tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("malformed tool list: entry %d has no name", i)
		}
	}
	return tools, nil
}

// Call executes a tool through the backend it is bound to.
// Backend errors are returned as *domain.ToolExecutionError; no retry is attempted.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
	r.mu.RLock()
	bound, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return domain.ToolResult{}, fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}

	if r.validateArgs {
		checked, err := r.checkArgs(bound, args)
		if err != nil {
			return domain.ToolResult{}, err
		}
		args = checked
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout(bound.backend))
	defer cancel()

	res, err := bound.backend.Transport.CallTool(ctx, name, args)
	if err != nil {
		var te *domain.ToolExecutionError
		if errors.As(err, &te) {
			if te.Tool == "" {
				te.Tool = name
			}
			if te.Backend == "" {
				te.Backend = bound.backend.Name
			}
			return domain.ToolResult{}, err
		}
		class := domain.ClassFailure
		if errors.Is(err, context.DeadlineExceeded) {
			class = domain.ClassUnavailable
		}
		return domain.ToolResult{}, &domain.ToolExecutionError{
			Tool:    name,
			Backend: bound.backend.Name,
			Class:   class,
			Message: err.Error(),
			Err:     err,
		}
	}
	return res, nil
}

// List returns the known tools sorted by name.
func (r *Registry) List() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]domain.Tool, 0, len(r.tools))
	for _, b := range r.tools {
		tools = append(tools, b.tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Lookup returns the metadata of a tool and the name of the backend serving it.
func (r *Registry) Lookup(name string) (domain.Tool, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.tools[name]
	if !ok {
		return domain.Tool{}, "", false
	}
	return b.tool, b.backend.Name, true
}

func (r *Registry) checkArgs(bound binding, args map[string]any) (map[string]any, error) {
	s, err := schema.FromJSONSchema(bound.tool.Parameters)
	if err != nil {
		r.logger.Debug("Tool schema not understood, skipping validation", "tool", bound.tool.Name, "err", err)
		return args, nil
	}
	args = schema.Conform(s, args)
	if err := schema.Validate(s, args); err != nil {
		return nil, &domain.ToolExecutionError{
			Tool:    bound.tool.Name,
			Backend: bound.backend.Name,
			Class:   domain.ClassValidation,
			Message: err.Error(),
			Err:     err,
		}
	}
	return args, nil
}

func (r *Registry) timeout(b *Backend) time.Duration {
	if b.Timeout > 0 {
		return b.Timeout
	}
	return r.defaultTimeout
}
