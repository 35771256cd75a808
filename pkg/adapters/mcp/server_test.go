package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/cortex"
	cortexmcp "github.com/aretw0/cortex/pkg/adapters/mcp"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgent(t *testing.T) *cortex.Agent {
	t.Helper()
	planner := ports.PlannerFunc(func(ctx context.Context, req ports.PlanRequest) (string, error) {
		if req.Step == 1 {
			return "CALL: echo|text=hello", nil
		}
		return "TERMINAL: said hello", nil
	})
	agent, err := cortex.New(
		cortex.WithPlanner(planner),
		cortex.WithTool(domain.Tool{
			Name:        "echo",
			Description: "Echo text back",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"text": map[string]any{"type": "string"}},
			},
		}, func(ctx context.Context, args map[string]any) (any, error) {
			return "echo: " + args["text"].(string), nil
		}),
	)
	require.NoError(t, err)
	return agent
}

func connect(t *testing.T, srv *cortexmcp.Server) *client.Client {
	t.Helper()
	ctx := context.Background()
	c, err := client.NewInProcessClient(srv.MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Start(ctx))

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "cortex-test", Version: "test"}
	_, err = c.Initialize(ctx, init)
	require.NoError(t, err)
	return c
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return ""
}

func call(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	return res
}

func TestServer_ListsTools(t *testing.T) {
	c := connect(t, cortexmcp.NewServer(newAgent(t)))

	list, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)
	names := []string{}
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"run_task", "list_tools"}, names)

	res := call(t, c, "list_tools", nil)
	var tools []domain.Tool
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &tools))
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
}

func TestServer_RunTask(t *testing.T) {
	c := connect(t, cortexmcp.NewServer(newAgent(t)))

	res := call(t, c, "run_task", map[string]any{"input": "say hello", "session_id": "mcp-1"})
	require.False(t, res.IsError)

	var out cortexmcp.RunResponse
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "mcp-1", out.SessionID)
	assert.Equal(t, "said hello", out.Answer)
	assert.Equal(t, domain.OutcomeSuccess, out.Outcome)
	assert.Equal(t, []string{"echo"}, out.ToolsUsed)

	res = call(t, c, "run_task", map[string]any{"input": " "})
	assert.True(t, res.IsError)
}

func TestServer_ToolProxy(t *testing.T) {
	c := connect(t, cortexmcp.NewServer(newAgent(t), cortexmcp.WithToolProxy()))

	list, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Tools, 3)

	res := call(t, c, "echo", map[string]any{"text": "hi"})
	require.False(t, res.IsError)
	assert.Equal(t, "echo: hi", text(t, res))
}

func TestServer_ToolsResource(t *testing.T) {
	c := connect(t, cortexmcp.NewServer(newAgent(t)))

	req := mcp.ReadResourceRequest{}
	req.Params.URI = cortexmcp.ToolsURI
	res, err := c.ReadResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	var body string
	switch rc := res.Contents[0].(type) {
	case mcp.TextResourceContents:
		body = rc.Text
	case *mcp.TextResourceContents:
		body = rc.Text
	}
	assert.Contains(t, body, `"name":"echo"`)
}
