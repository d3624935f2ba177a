package operation

import (
	"github.com/go-training/hatena-mcp/pkg/bridge"
	"github.com/go-training/hatena-mcp/pkg/operation/hatena"
	"github.com/go-training/hatena-mcp/pkg/operation/token"

	"github.com/mark3labs/mcp-go/server"
)

/*
RegisterHatenaTool registers the Hatena account tools to the specified MCPServer instance.

Parameters:
  - s: Pointer to the MCPServer instance where the tools will be registered.
  - b: The bridge that runs the Hatena authorization flow and stores credentials.

This function registers start_hatena_oauth, save_blog, list_saved_blogs and
reset_hatena_session to the MCPServer.
*/
func RegisterHatenaTool(s *server.MCPServer, b *bridge.Bridge) {
	tool := &Tool{}
	h := hatena.NewHandler(b)

	tool.RegisterWrite(server.ServerTool{
		Tool:    hatena.StartOAuthTool,
		Handler: h.HandleStartOAuth,
	})
	tool.RegisterWrite(server.ServerTool{
		Tool:    hatena.SaveBlogTool,
		Handler: h.HandleSaveBlog,
	})
	tool.RegisterWrite(server.ServerTool{
		Tool:    hatena.ResetSessionTool,
		Handler: h.HandleResetSession,
	})
	tool.RegisterRead(server.ServerTool{
		Tool:    hatena.ListSavedBlogsTool,
		Handler: h.HandleListSavedBlogs,
	})

	s.AddTools(tool.Tools()...)
}

/*
RegisterAuthTool registers authentication-related tools to the specified MCPServer instance.

Parameters:
  - s: Pointer to the MCPServer instance where the tools will be registered.

This function registers the whoami tool, which reports the verified caller.
*/
func RegisterAuthTool(s *server.MCPServer) {
	tool := &Tool{}

	tool.RegisterRead(server.ServerTool{
		Tool:    token.WhoAmITool,
		Handler: token.HandleWhoAmITool,
	})

	s.AddTools(tool.Tools()...)
}

/*
Tool manages collections of tools to be registered with an MCPServer.

Fields:
  - write: Stores all ServerTools registered as write operations.
  - read: Stores all ServerTools registered as read operations.
*/
type Tool struct {
	write []server.ServerTool
	read  []server.ServerTool
}

// RegisterWrite registers a ServerTool as a write operation.
func (t *Tool) RegisterWrite(s server.ServerTool) {
	t.write = append(t.write, s)
}

// RegisterRead registers a ServerTool as a read operation.
func (t *Tool) RegisterRead(s server.ServerTool) {
	t.read = append(t.read, s)
}

/*
Tools returns all registered ServerTools.

Returns:
  - []server.ServerTool: A slice containing all write and read tools, with write tools first followed by read tools.
*/
func (t *Tool) Tools() []server.ServerTool {
	tools := make([]server.ServerTool, 0, len(t.write)+len(t.read))
	tools = append(tools, t.write...)
	tools = append(tools, t.read...)
	return tools
}
