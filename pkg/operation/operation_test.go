package operation

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"testing"

	"github.com/go-training/hatena-mcp/pkg/bridge"
	"github.com/go-training/hatena-mcp/pkg/core"
	"github.com/go-training/hatena-mcp/pkg/hatena"
	"github.com/go-training/hatena-mcp/pkg/store"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUpstream struct{}

func (stubUpstream) GetRequestToken(context.Context, string) (*hatena.RequestToken, error) {
	return &hatena.RequestToken{Token: "t", Secret: "s"}, nil
}

func (stubUpstream) ExchangeAccessToken(context.Context, string, string, string) (*hatena.AccessToken, error) {
	return &hatena.AccessToken{Token: "a", Secret: "b"}, nil
}

func (stubUpstream) AuthorizeURL(token, state string) string {
	return "https://www.hatena.ne.jp/oauth/authorize?" + url.Values{"oauth_token": {token}, "state": {state}}.Encode()
}

func newClient(t *testing.T) *client.Client {
	t.Helper()
	s := NewMCPServer(bridge.New(stubUpstream{}, store.NewMemoryStore()))

	c, err := client.NewInProcessClient(s.Server())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	var init mcp.InitializeRequest
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "0.0.1"}
	res, err := c.Initialize(ctx, init)
	require.NoError(t, err)
	assert.Equal(t, ServerName, res.ServerInfo.Name)
	return c
}

func TestToolOrder(t *testing.T) {
	tool := &Tool{}
	tool.RegisterRead(server.ServerTool{Tool: mcp.NewTool("r1")})
	tool.RegisterWrite(server.ServerTool{Tool: mcp.NewTool("w1")})
	tool.RegisterRead(server.ServerTool{Tool: mcp.NewTool("r2")})

	var names []string
	for _, st := range tool.Tools() {
		names = append(names, st.Tool.Name)
	}
	assert.Equal(t, []string{"w1", "r1", "r2"}, names)
}

func TestRegisteredTools(t *testing.T) {
	c := newClient(t)

	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"list_saved_blogs",
		"reset_hatena_session",
		"save_blog",
		"start_hatena_oauth",
		"whoami",
	}, names)
}

func TestWhoAmIThroughServer(t *testing.T) {
	c := newClient(t)
	ctx := core.WithIdentity(context.Background(), &core.Identity{UserID: "user-1", ClientID: "client-1"})

	var req mcp.CallToolRequest
	req.Params.Name = "whoami"
	res, err := c.CallTool(ctx, req)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	txt, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "user user-1 (client client-1)", txt.Text)
}

func TestToolError(t *testing.T) {
	assert.Equal(t, "", toolError(nil, nil))
	assert.Equal(t, "", toolError(mcp.NewToolResultText("ok"), nil))
	assert.Equal(t, "boom", toolError(nil, errors.New("boom")))
	assert.Equal(t, "not linked", toolError(mcp.NewToolResultError("not linked"), nil))
	assert.Equal(t, "unknown error with no content", toolError(&mcp.CallToolResult{IsError: true}, nil))
}

func TestToolHandlerMiddleware(t *testing.T) {
	var seen context.Context
	next := func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		seen = ctx
		return mcp.NewToolResultError("failed"), nil
	}

	var req mcp.CallToolRequest
	req.Params.Name = "save_blog"
	req.Params.Arguments = map[string]any{"url": "u", "blogId": "b"}
	assert.Equal(t, []string{"blogId", "url"}, argumentNames(req))

	res, err := ToolHandlerMiddleware()(next)(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.NotNil(t, seen)
}
