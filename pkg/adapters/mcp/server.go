// Package mcp exposes a cortex agent as a Model Context Protocol server.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/cortex"
	"github.com/aretw0/cortex/internal/sanitize"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ToolsURI is the resource listing the agent's tools.
const ToolsURI = "cortex://tools"

// RunResponse is the structured result of the run_task tool.
type RunResponse struct {
	SessionID string         `json:"session_id" jsonschema_description:"Identifier of the session"`
	Answer    string         `json:"answer" jsonschema_description:"Final answer of the agent"`
	Outcome   domain.Outcome `json:"outcome" jsonschema_description:"One of success, partial, abort or error"`
	Steps     int            `json:"steps" jsonschema_description:"Steps the session used"`
	ToolsUsed []string       `json:"tools_used" jsonschema_description:"Distinct tools called, in first-use order"`
}

// Agent is the part of cortex.Agent the server needs.
type Agent interface {
	RunSession(ctx context.Context, sessionID, input string) cortex.Result
	Dispatcher() ports.ToolDispatcher
}

// Server wraps the agent and exposes it as an MCP Server.
type Server struct {
	agent     Agent
	logger    *slog.Logger
	proxy     bool
	mcpServer *server.MCPServer
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithToolProxy also exposes every dispatcher tool under its own name, so
// MCP clients can call backend tools without running a session.
func WithToolProxy() Option {
	return func(s *Server) {
		s.proxy = true
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(agent Agent, opts ...Option) *Server {
	s := &Server{
		agent:     agent,
		logger:    slog.New(slog.DiscardHandler),
		mcpServer: server.NewMCPServer("cortex-mcp", strings.TrimSpace(cortex.Version), server.WithToolCapabilities(false)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it
// gracefully when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: run_task
	runTool := mcp.NewTool("run_task",
		mcp.WithDescription("Run the agent on a task and return its final answer."),
		mcp.WithString("input", mcp.Required(), mcp.Description("The task, in natural language")),
		mcp.WithString("session_id", mcp.Description("Session identifier (optional, generated when omitted)")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunTask))

	// TOOL: list_tools
	s.mcpServer.AddTool(mcp.NewTool("list_tools",
		mcp.WithDescription("List the tools the agent can call."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(s.tools())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode tools: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})

	if s.proxy {
		for _, tool := range s.tools() {
			s.proxyTool(tool)
		}
	}
}

func (s *Server) proxyTool(tool domain.Tool) {
	switch tool.Name {
	case "run_task", "list_tools":
		s.logger.Warn("Tool name is reserved, not proxied", "tool", tool.Name)
		return
	}
	schema := tool.Parameters
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		s.logger.Warn("Tool schema not encodable, not proxied", "tool", tool.Name, "err", err)
		return
	}

	name := tool.Name
	s.mcpServer.AddTool(mcp.NewToolWithRawSchema(name, tool.Description, raw),
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, err := sanitize.Arguments(request.GetArguments())
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			res, err := s.agent.Dispatcher().Call(ctx, name, args)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(res.Text), nil
		})
}

func (s *Server) handleRunTask(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunResponse, error) {
	raw, _ := args["input"].(string)
	input, err := sanitize.Input(strings.TrimSpace(raw))
	if err != nil {
		return RunResponse{}, err
	}
	if input == "" {
		return RunResponse{}, errors.New("input is required")
	}
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	res := s.agent.RunSession(ctx, sessionID, input)
	s.logger.Info("MCP run_task finished", "session", res.SessionID, "outcome", res.Outcome)

	tools := res.ToolsUsed
	if tools == nil {
		tools = []string{}
	}
	return RunResponse{
		SessionID: res.SessionID,
		Answer:    res.Answer,
		Outcome:   res.Outcome,
		Steps:     res.Steps,
		ToolsUsed: tools,
	}, nil
}

func (s *Server) tools() []domain.Tool {
	tools := s.agent.Dispatcher().List()
	if tools == nil {
		tools = []domain.Tool{}
	}
	return tools
}

func (s *Server) registerResources() {
	// EXPOSE: cortex://tools
	s.mcpServer.AddResource(mcp.NewResource(ToolsURI, "Available Tools",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.tools())
		if err != nil {
			return nil, fmt.Errorf("failed to encode tools: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ToolsURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
