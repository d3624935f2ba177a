package server

import (
	"errors"
	"net/http"

	"github.com/go-training/hatena-mcp/pkg/bridge"
	"github.com/go-training/hatena-mcp/pkg/core"

	"github.com/gin-gonic/gin"
)

const linkedPage = `<html><body>
<h2>Hatena blog connected</h2>
<p>You can close this tab and return to your MCP client.</p>
</body></html>`

func (s *Server) handleHatenaCallback(c *gin.Context) {
	_, err := s.bridge.Complete(c.Request.Context(), bridge.Callback{
		State:      c.Query("state"),
		OAuthToken: c.Query("oauth_token"),
		Verifier:   c.Query("oauth_verifier"),
	})
	switch {
	case err == nil:
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(linkedPage))
	case errors.Is(err, bridge.ErrMissingCallbackParams):
		c.String(http.StatusBadRequest, "Missing oauth params")
	case errors.Is(err, bridge.ErrCorrelationNotFound):
		c.String(http.StatusBadRequest, "Invalid or expired state")
	default:
		core.LoggerFromCtx(c.Request.Context()).Error("hatena callback failed", "error", err)
		c.String(http.StatusInternalServerError, "Failed to complete authorization")
	}
}
