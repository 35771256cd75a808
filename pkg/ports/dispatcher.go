package ports

import (
	"context"

	"github.com/aretw0/cortex/pkg/domain"
)

// ToolDispatcher executes tools by name.
// It applies no retry policy of its own.
type ToolDispatcher interface {
	// Call executes a tool. It returns domain.ErrToolNotFound for unknown names.
	Call(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error)

	// List returns the tools currently known to the dispatcher.
	List() []domain.Tool
}

// Transport reaches a single backend.
type Transport interface {
	ListTools(ctx context.Context) ([]domain.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error)
}
