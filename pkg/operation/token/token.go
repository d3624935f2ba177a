// Package token provides the MCP tool that reports the verified caller.
package token

import (
	"context"
	"fmt"

	"github.com/go-training/hatena-mcp/pkg/core"

	"github.com/mark3labs/mcp-go/mcp"
)

// whoAmI is the structured result of the whoami tool.
type whoAmI struct {
	UserID   string `json:"userId"`
	ClientID string `json:"clientId,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

// WhoAmITool defines the MCP tool for displaying the identity behind the access token.
var WhoAmITool = mcp.NewTool("whoami",
	mcp.WithDescription("Show the user and client the current access token was issued to"),
)

// HandleWhoAmITool is an MCP tool handler that returns the identity the
// bearer middleware verified for this request.
func HandleWhoAmITool(
	ctx context.Context,
	_ mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	id, ok := core.IdentityFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("missing identity: request was not authenticated")
	}
	out := whoAmI{
		UserID:   id.UserID,
		ClientID: id.ClientID,
		Scope:    id.Scope,
	}
	return mcp.NewToolResultStructured(out, fmt.Sprintf("user %s (client %s)", out.UserID, out.ClientID)), nil
}
