// Package server exposes the authorization server, the discovery documents,
// the Hatena callback and the bearer-protected MCP endpoint over HTTP.
package server

import (
	"net/http"
	"strings"

	"github.com/go-training/hatena-mcp/pkg/bridge"
	"github.com/go-training/hatena-mcp/pkg/oauth"
	"github.com/go-training/hatena-mcp/pkg/operation"
	"github.com/go-training/hatena-mcp/pkg/token"

	sloggin "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
)

// MCPPath is the protected MCP endpoint; tokens may name origin+MCPPath as their resource.
const MCPPath = "/mcp"

// Options configures the HTTP surface.
type Options struct {
	// Issuer is the iss claim. Empty means the request origin.
	Issuer string
	// PublicURL replaces the request origin when set.
	PublicURL string
	// SetupSecret gates POST /oauth/setup. Empty disables the endpoint.
	SetupSecret string
}

// Server holds the components behind the HTTP routes.
type Server struct {
	opts     Options
	oauth    *oauth.Server
	keys     token.KeyProvider
	verifier *token.Verifier
	bridge   *bridge.Bridge
	mcp      *operation.MCPServer
}

// New wires the HTTP surface around its components.
func New(opts Options, authz *oauth.Server, keys token.KeyProvider, b *bridge.Bridge) *Server {
	opts.Issuer = strings.TrimRight(opts.Issuer, "/")
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")
	return &Server{
		opts:     opts,
		oauth:    authz,
		keys:     keys,
		verifier: token.NewVerifier(keys),
		bridge:   b,
		mcp:      operation.NewMCPServer(b),
	}
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(sloggin.SetLogger(), gin.Recovery())

	cors := corsMiddleware("Mcp-Session-Id")

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/.well-known/oauth-authorization-server", cors, s.handleAuthServerMetadata)
	router.GET("/.well-known/oauth-protected-resource", cors, s.handleProtectedResource)
	router.GET("/.well-known/oauth-protected-resource/:resource", cors, s.handleProtectedResource)

	oauthGroup := router.Group("/oauth", cors)
	{
		oauthGroup.GET("/authorize", s.handleAuthorize)
		oauthGroup.POST("/token", s.handleToken)
		oauthGroup.GET("/jwks", s.handleJWKS)
		oauthGroup.POST("/setup", s.handleSetup)
		oauthGroup.OPTIONS("/*path", func(c *gin.Context) {})
	}

	router.GET("/hatena/oauth/callback", s.handleHatenaCallback)

	mcpHandler := gin.WrapH(s.mcp.ServeHTTP(s.origin))
	router.OPTIONS(MCPPath, cors)
	router.POST(MCPPath, cors, s.bearerMiddleware, mcpHandler)
	router.GET(MCPPath, cors, s.bearerMiddleware, mcpHandler)
	router.DELETE(MCPPath, cors, s.bearerMiddleware, mcpHandler)

	return router
}

// origin returns scheme://host as seen by the client, honoring
// X-Forwarded-Proto from a fronting proxy.
func (s *Server) origin(r *http.Request) string {
	if s.opts.PublicURL != "" {
		return s.opts.PublicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host
}

// issuer is the iss claim used both to sign and to verify tokens.
func (s *Server) issuer(r *http.Request) string {
	if s.opts.Issuer != "" {
		return s.opts.Issuer
	}
	return s.origin(r)
}
