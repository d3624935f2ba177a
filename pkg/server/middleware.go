package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-training/hatena-mcp/pkg/core"

	"github.com/gin-gonic/gin"
)

// corsMiddleware is an optimized CORS handler for Gin.
// It merges allowed headers with defaults, sets standard options, and can be further customized.
func corsMiddleware(allowedHeaders ...string) gin.HandlerFunc {
	headers := []string{"Mcp-Protocol-Version", "Authorization", "Content-Type"}
	for _, h := range allowedHeaders {
		h = strings.TrimSpace(h)
		if h != "" && h != "*" && !containsCI(headers, h) {
			headers = append(headers, h)
		}
	}
	allowHeaders := strings.Join(headers, ", ")

	allowedMethods := []string{"GET", "POST", "DELETE", "OPTIONS"}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Vary", "Origin")
		c.Header("Access-Control-Allow-Methods", strings.Join(allowedMethods, ", "))
		c.Header("Access-Control-Allow-Headers", allowHeaders)
		c.Header("Access-Control-Expose-Headers", "Mcp-Session-Id, WWW-Authenticate")
		c.Header("Access-Control-Max-Age", "86400")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// bearerMiddleware verifies the access token and stores the caller identity
// on the request context. Every verification failure gets the same 401
// challenge pointing at the protected resource metadata.
func (s *Server) bearerMiddleware(c *gin.Context) {
	r := c.Request
	origin := s.origin(r)

	id, err := s.verifier.Verify(r.Context(), r, s.issuer(r), origin+MCPPath, origin)
	if err != nil {
		kind := core.KindOf(err)
		if kind == core.ErrServerError {
			core.LoggerFromCtx(r.Context()).Error("bearer verification unavailable", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": string(kind)})
			return
		}
		core.LoggerFromCtx(r.Context()).Debug("bearer token rejected", "error", err)
		c.Header("WWW-Authenticate", fmt.Sprintf(
			`Bearer resource_metadata=%q, error="invalid_token", error_description=%q`,
			origin+"/.well-known/oauth-protected-resource"+MCPPath, string(kind),
		))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_token",
			"error_description": string(kind),
		})
		return
	}

	c.Request = r.WithContext(core.WithIdentity(r.Context(), id))
	c.Next()
}

// containsCI checks if slice contains item (case-insensitive).
func containsCI(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
