package operation

import (
	"context"
	"net/http"
	"time"

	"github.com/go-training/hatena-mcp/pkg/bridge"
	"github.com/go-training/hatena-mcp/pkg/core"

	"github.com/mark3labs/mcp-go/server"
)

// ServerName and ServerVersion are reported to MCP clients on initialize.
const (
	ServerName    = "hatena-blog-mcp"
	ServerVersion = "1.0.0"
)

// MCPServer wraps the underlying MCP server instance.
type MCPServer struct {
	server *server.MCPServer
}

// NewMCPServer creates the MCP server with every tool registered and the
// tracing middleware installed.
func NewMCPServer(b *bridge.Bridge) *MCPServer {
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(ToolHandlerMiddleware()),
	)

	RegisterHatenaTool(mcpServer, b)
	RegisterAuthTool(mcpServer)

	return &MCPServer{
		server: mcpServer,
	}
}

// Server returns the wrapped server, mainly for in-process clients in tests.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeHTTP returns a streamable HTTP server that copies the verified
// identity and the public origin of each request into the tool context.
func (s *MCPServer) ServeHTTP(baseURL func(*http.Request) string) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.server,
		server.WithHeartbeatInterval(30*time.Second),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			ctx = core.IdentityFromRequest(ctx, r)
			ctx = core.WithBaseURL(ctx, baseURL(r))
			return core.WithRequestID(ctx)
		}),
	)
}
