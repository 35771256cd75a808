package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/cortex/pkg/domain"
)

// ToolFunction defines the signature for an in-process tool implementation.
// It receives a context and a map of arguments, and returns a result or error.
type ToolFunction func(ctx context.Context, args map[string]any) (any, error)

type funcTool struct {
	tool domain.Tool
	fn   ToolFunction
}

// FuncTransport serves tools implemented as Go functions.
type FuncTransport struct {
	mu    sync.RWMutex
	order []string
	tools map[string]funcTool
}

// NewFuncTransport creates an empty function transport.
func NewFuncTransport() *FuncTransport {
	return &FuncTransport{tools: make(map[string]funcTool)}
}

// Register adds a tool. If a tool with the same name exists, it is overwritten.
func (f *FuncTransport) Register(tool domain.Tool, fn ToolFunction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.tools[tool.Name]; !exists {
		f.order = append(f.order, tool.Name)
	}
	f.tools[tool.Name] = funcTool{tool: tool, fn: fn}
}

// ListTools returns the registered tools in registration order.
func (f *FuncTransport) ListTools(ctx context.Context) ([]domain.Tool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	tools := make([]domain.Tool, 0, len(f.order))
	for _, name := range f.order {
		tools = append(tools, f.tools[name].tool)
	}
	return tools, nil
}

// CallTool invokes the named function and normalizes its result.
func (f *FuncTransport) CallTool(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
	f.mu.RLock()
	t, ok := f.tools[name]
	f.mu.RUnlock()
	if !ok {
		return domain.ToolResult{}, fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}

	out, err := t.fn(ctx, args)
	if err != nil {
		return domain.ToolResult{}, err
	}
	return domain.NewToolResult(out), nil
}
