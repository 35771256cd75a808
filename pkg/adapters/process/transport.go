// Package process reaches tool backends that run as local subprocesses
// speaking the Model Context Protocol over stdio.
//
// Every discovery pass and every call spawns a fresh subprocess, performs the
// initialize handshake, issues a single request and tears the process down.
// A crashed or hung backend therefore never leaks state into the next call.
package process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/cortex/pkg/domain"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Config describes how to start the backend process.
type Config struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Transport implements ports.Transport over a per-call stdio MCP session.
type Transport struct {
	cfg           Config
	clientName    string
	clientVersion string
}

// Option configures a Transport.
type Option func(*Transport)

// WithClientInfo sets the implementation info sent during the handshake.
func WithClientInfo(name, version string) Option {
	return func(t *Transport) {
		t.clientName = name
		t.clientVersion = version
	}
}

// New creates a process transport.
func New(cfg Config, opts ...Option) *Transport {
	t := &Transport{
		cfg:           cfg,
		clientName:    "cortex",
		clientVersion: "dev",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ListTools spawns the backend and returns the tools it advertises.
func (t *Transport) ListTools(ctx context.Context) ([]domain.Tool, error) {
	var tools []domain.Tool
	err := t.session(ctx, func(c *client.Client) error {
		res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			return fmt.Errorf("list tools: %w", err)
		}
		for _, tool := range res.Tools {
			tools = append(tools, convertTool(tool))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tools, nil
}

// CallTool spawns the backend and invokes a single tool.
// Error results reported by the backend are returned as *domain.ToolExecutionError
// carrying the backend's own message.
func (t *Transport) CallTool(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
	var result domain.ToolResult
	err := t.session(ctx, func(c *client.Client) error {
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args

		res, err := c.CallTool(ctx, req)
		if err != nil {
			return &domain.ToolExecutionError{Tool: name, Class: classify(err), Message: err.Error(), Err: err}
		}

		text := contentText(res.Content)
		if res.IsError {
			return &domain.ToolExecutionError{Tool: name, Class: domain.ClassFailure, Message: text}
		}

		result = domain.NewToolResult(text)
		if res.StructuredContent != nil {
			result.Structured = normalize(res.StructuredContent)
		}
		return nil
	})
	if err != nil {
		var te *domain.ToolExecutionError
		if !errors.As(err, &te) {
			err = &domain.ToolExecutionError{Tool: name, Class: domain.ClassUnavailable, Message: err.Error(), Err: err}
		}
		return domain.ToolResult{}, err
	}
	return result, nil
}

// session starts the process, performs the handshake, runs fn and always
// tears the process down.
func (t *Transport) session(ctx context.Context, fn func(c *client.Client) error) error {
	c, err := client.NewStdioMCPClient(t.cfg.Command, t.env(), t.cfg.Args...)
	if err != nil {
		return fmt.Errorf("start %s: %w", t.cfg.Command, err)
	}
	defer c.Close()

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{
		Name:    t.clientName,
		Version: t.clientVersion,
	}
	if _, err := c.Initialize(ctx, init); err != nil {
		return fmt.Errorf("handshake with %s: %w", t.cfg.Command, err)
	}

	return fn(c)
}

func (t *Transport) env() []string {
	env := make([]string, 0, len(t.cfg.Env))
	for k, v := range t.cfg.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

func classify(err error) domain.ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.ClassUnavailable
	}
	return domain.ClassFailure
}

// convertTool maps MCP tool metadata to the domain model.
// The input schema is taken from the wire form so raw schemas survive.
func convertTool(tool mcp.Tool) domain.Tool {
	out := domain.Tool{Name: tool.Name, Description: tool.Description}

	data, err := json.Marshal(tool)
	if err != nil {
		return out
	}
	var wire struct {
		InputSchema map[string]any `json:"inputSchema"`
	}
	if err := json.Unmarshal(data, &wire); err == nil {
		out.Parameters = wire.InputSchema
	}
	return out
}

// contentText joins the text parts of a result. Non-text parts are kept in
// their JSON form.
func contentText(contents []mcp.Content) string {
	parts := make([]string, 0, len(contents))
	for _, content := range contents {
		switch c := content.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		default:
			if data, err := json.Marshal(c); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
