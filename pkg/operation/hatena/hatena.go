// Package hatena provides the MCP tools that link a Hatena account and manage
// the blogs saved for it.
package hatena

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-training/hatena-mcp/pkg/bridge"
	"github.com/go-training/hatena-mcp/pkg/core"

	"github.com/mark3labs/mcp-go/mcp"
)

// CallbackPath is where Hatena redirects the user after authorization.
const CallbackPath = "/hatena/oauth/callback"

const notLinkedMessage = "Hatena account is not linked. Run start_hatena_oauth first."

// StartOAuthTool defines the MCP tool that begins linking a Hatena account.
var StartOAuthTool = mcp.NewTool("start_hatena_oauth",
	mcp.WithDescription(`
Start linking your Hatena account.

Returns an authorizeUrl to open in a browser. After approving access on
Hatena, the browser is redirected back to this server and the account is
linked to the current user. The link expires if not completed within 10 minutes.
`),
)

// SaveBlogTool defines the MCP tool for remembering a blog of the linked account.
var SaveBlogTool = mcp.NewTool("save_blog",
	mcp.WithDescription("Save a Hatena blog for later use. Saving the same blogId again updates it."),
	mcp.WithString("blogId",
		mcp.Required(),
		mcp.Description("Blog id, usually the blog domain such as example.hatenablog.com"),
	),
	mcp.WithString("title",
		mcp.Description("Display title of the blog"),
	),
	mcp.WithString("url",
		mcp.Description("Public URL of the blog"),
	),
)

// ListSavedBlogsTool defines the MCP tool that lists saved blogs.
var ListSavedBlogsTool = mcp.NewTool("list_saved_blogs",
	mcp.WithDescription("List the Hatena blogs saved for the linked account"),
)

// ResetSessionTool defines the MCP tool that forgets the Hatena credential.
var ResetSessionTool = mcp.NewTool("reset_hatena_session",
	mcp.WithDescription("Forget the linked Hatena credential. Saved blogs are removed with it."),
)

type blogsResult struct {
	Saved *core.BlogInfo  `json:"saved,omitempty"`
	Blogs []core.BlogInfo `json:"blogs"`
}

// Handler serves the Hatena tools for one bridge.
type Handler struct {
	bridge *bridge.Bridge
}

// NewHandler returns a Handler using b.
func NewHandler(b *bridge.Bridge) *Handler {
	return &Handler{bridge: b}
}

// HandleStartOAuth obtains a request token and returns the authorize URL.
func (h *Handler) HandleStartOAuth(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := core.LoggerFromCtx(ctx)
	id, ok := core.IdentityFromContext(ctx)
	if !ok {
		return nil, errors.New("missing identity: request was not authenticated")
	}
	baseURL := core.BaseURLFromContext(ctx)
	if baseURL == "" {
		return nil, errors.New("missing base url")
	}

	res, err := h.bridge.Start(ctx, id.UserID, strings.TrimRight(baseURL, "/")+CallbackPath)
	if err != nil {
		logger.Error("start hatena oauth failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start Hatena authorization: %v", err)), nil
	}
	return mcp.NewToolResultStructured(res, "Open this URL to link your Hatena account: "+res.AuthorizeURL), nil
}

// HandleSaveBlog stores or updates a blog for the linked account.
func (h *Handler) HandleSaveBlog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := core.IdentityFromContext(ctx)
	if !ok {
		return nil, errors.New("missing identity: request was not authenticated")
	}

	blogID, err := request.RequireString("blogId")
	if err != nil || strings.TrimSpace(blogID) == "" {
		return mcp.NewToolResultError("blogId is required"), nil
	}
	blog := core.BlogInfo{
		BlogID: strings.TrimSpace(blogID),
		Title:  request.GetString("title", ""),
		URL:    request.GetString("url", ""),
	}
	if blog.URL != "" {
		u, err := url.Parse(blog.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return mcp.NewToolResultError("url must be an absolute http(s) URL"), nil
		}
	}

	st, err := h.bridge.Credentials().SaveBlog(ctx, id.UserID, blog)
	if errors.Is(err, bridge.ErrNotLinked) {
		return mcp.NewToolResultError(notLinkedMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("save blog: %w", err)
	}

	saved := findBlog(st.Hatena.Blogs, blog.BlogID)
	return mcp.NewToolResultStructured(blogsResult{
		Saved: saved,
		Blogs: st.Hatena.Blogs,
	}, fmt.Sprintf("Saved blog %s (%d total)", blog.BlogID, len(st.Hatena.Blogs))), nil
}

// HandleListSavedBlogs returns the blogs saved for the linked account.
func (h *Handler) HandleListSavedBlogs(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := core.IdentityFromContext(ctx)
	if !ok {
		return nil, errors.New("missing identity: request was not authenticated")
	}

	cred, err := h.bridge.Credentials().Credential(ctx, id.UserID)
	if errors.Is(err, bridge.ErrNotLinked) {
		return mcp.NewToolResultError(notLinkedMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	blogs := cred.Blogs
	if blogs == nil {
		blogs = []core.BlogInfo{}
	}
	return mcp.NewToolResultStructured(blogsResult{Blogs: blogs}, fmt.Sprintf("%d saved blog(s)", len(blogs))), nil
}

// HandleResetSession clears the stored Hatena credential.
func (h *Handler) HandleResetSession(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := core.IdentityFromContext(ctx)
	if !ok {
		return nil, errors.New("missing identity: request was not authenticated")
	}
	if err := h.bridge.Credentials().Clear(ctx, id.UserID); err != nil {
		return nil, fmt.Errorf("clear credential: %w", err)
	}
	core.LoggerFromCtx(ctx).Info("hatena session cleared")
	return mcp.NewToolResultText("Hatena session cleared. Run start_hatena_oauth again."), nil
}

func findBlog(blogs []core.BlogInfo, blogID string) *core.BlogInfo {
	for i := range blogs {
		if blogs[i].BlogID == blogID {
			b := blogs[i]
			return &b
		}
	}
	return nil
}
