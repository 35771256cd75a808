// Package network reaches tool backends exposed over HTTP.
//
// A backend serves two endpoints under its base URL:
//
//	GET  {base}/tools      -> {"tools": [{"name", "description", "parameters"}]}
//	POST {base}/call_tool  <- {"method": "tools/call", "params": {"name", "arguments"}}
//	                       -> {"result": ...} or {"error": {"code", "message", "class"}}
package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/cortex/pkg/domain"
)

// DefaultTimeout is applied by the default HTTP client.
const DefaultTimeout = 30 * time.Second

// Config describes a network backend.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Transport implements ports.Transport over HTTP request/response.
type Transport struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		t.client = c
	}
}

// New creates a network transport.
func New(cfg Config, opts ...Option) *Transport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := &Transport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CallRequest is the body sent to the call endpoint.
type CallRequest struct {
	Method string     `json:"method"`
	Params CallParams `json:"params"`
}

// CallParams names the tool and its arguments.
type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CallResponse is the body returned by the call endpoint.
type CallResponse struct {
	Result any        `json:"result,omitempty"`
	Error  *CallError `json:"error,omitempty"`
}

// CallError is the error envelope of the call endpoint.
type CallError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	Class   string `json:"class,omitempty"`
}

// ToolsResponse is the body returned by the listing endpoint.
type ToolsResponse struct {
	Tools []domain.Tool `json:"tools"`
}

// ListTools fetches the tools advertised by the backend.
func (t *Transport) ListTools(ctx context.Context) ([]domain.Tool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	t.authorize(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("list tools: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ToolsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("malformed tool list: %w", err)
	}
	return out.Tools, nil
}

// CallTool posts a call to the backend.
// Non-2xx responses and error envelopes are returned as *domain.ToolExecutionError.
func (t *Transport) CallTool(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(CallRequest{
		Method: "tools/call",
		Params: CallParams{Name: name, Arguments: args},
	})
	if err != nil {
		return domain.ToolResult{}, &domain.ToolExecutionError{Tool: name, Class: domain.ClassValidation, Message: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/call_tool", bytes.NewReader(payload))
	if err != nil {
		return domain.ToolResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	t.authorize(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return domain.ToolResult{}, &domain.ToolExecutionError{Tool: name, Class: domain.ClassUnavailable, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ToolResult{}, &domain.ToolExecutionError{Tool: name, Class: domain.ClassUnavailable, Status: resp.StatusCode, Message: err.Error(), Err: err}
	}

	var out CallResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := &domain.ToolExecutionError{
			Tool:    name,
			Class:   domain.ClassifyStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(body)),
		}
		if decodeErr == nil && out.Error != nil {
			te.Message = out.Error.Message
			if out.Error.Class != "" {
				te.Class = domain.ErrorClass(out.Error.Class)
			}
		}
		return domain.ToolResult{}, te
	}

	if decodeErr != nil {
		return domain.ToolResult{}, &domain.ToolExecutionError{Tool: name, Class: domain.ClassFailure, Status: resp.StatusCode, Message: "malformed response: " + decodeErr.Error(), Err: decodeErr}
	}
	if out.Error != nil {
		class := domain.ClassFailure
		if out.Error.Class != "" {
			class = domain.ErrorClass(out.Error.Class)
		}
		return domain.ToolResult{}, &domain.ToolExecutionError{Tool: name, Class: class, Status: resp.StatusCode, Message: out.Error.Message}
	}

	return normalizeResult(name, out.Result)
}

func (t *Transport) authorize(req *http.Request) {
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
}

// normalizeResult accepts both plain payloads and MCP-style content envelopes.
func normalizeResult(name string, result any) (domain.ToolResult, error) {
	obj, ok := result.(map[string]any)
	if !ok {
		return domain.NewToolResult(result), nil
	}
	contents, ok := obj["content"].([]any)
	if !ok {
		return domain.NewToolResult(result), nil
	}

	parts := make([]string, 0, len(contents))
	for _, c := range contents {
		part, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := part["text"].(string); ok {
			parts = append(parts, text)
		}
	}
	text := strings.Join(parts, "\n")

	if isErr, _ := obj["isError"].(bool); isErr {
		return domain.ToolResult{}, &domain.ToolExecutionError{Tool: name, Class: domain.ClassFailure, Message: text}
	}

	res := domain.NewToolResult(text)
	if structured, ok := obj["structuredContent"]; ok && structured != nil {
		res.Structured = structured
	}
	return res, nil
}
