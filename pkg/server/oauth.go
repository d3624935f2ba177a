package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/go-training/hatena-mcp/pkg/core"
	"github.com/go-training/hatena-mcp/pkg/oauth"
	"github.com/go-training/hatena-mcp/pkg/token"

	"github.com/gin-gonic/gin"
)

// errorResponse is the OAuth2 error body.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// setupRequest is the body of POST /oauth/setup.
type setupRequest struct {
	ClientID     string   `json:"client_id" binding:"required"`
	ClientSecret string   `json:"client_secret" binding:"required"`
	RedirectURIs []string `json:"redirect_uris" binding:"required,min=1,dive,url"`
}

func writeOAuthError(c *gin.Context, err error) {
	kind := core.KindOf(err)
	var desc string
	var e *core.Error
	if errors.As(err, &e) {
		desc = e.Description
	}
	if kind == core.ErrServerError {
		core.LoggerFromCtx(c.Request.Context()).Error("oauth request failed", "path", c.FullPath(), "error", err)
		desc = ""
	}
	c.JSON(kind.HTTPStatus(), errorResponse{Error: string(kind), ErrorDescription: desc})
}

func (s *Server) handleAuthorize(c *gin.Context) {
	location, err := s.oauth.Authorize(c.Request.Context(), oauth.AuthorizeRequest{
		ClientID:            c.Query("client_id"),
		RedirectURI:         c.Query("redirect_uri"),
		ResponseType:        c.Query("response_type"),
		State:               c.Query("state"),
		Scope:               c.Query("scope"),
		Resource:            c.Query("resource"),
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: c.Query("code_challenge_method"),
	})
	if err != nil {
		writeOAuthError(c, err)
		return
	}
	c.Redirect(http.StatusFound, location)
}

// handleToken accepts client credentials in the form body or through HTTP
// Basic auth; body values take precedence.
func (s *Server) handleToken(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	req := oauth.TokenRequest{
		GrantType:    c.PostForm("grant_type"),
		Code:         c.PostForm("code"),
		RedirectURI:  c.PostForm("redirect_uri"),
		ClientID:     c.PostForm("client_id"),
		ClientSecret: c.PostForm("client_secret"),
		CodeVerifier: c.PostForm("code_verifier"),
		Resource:     c.PostForm("resource"),
		Issuer:       s.issuer(c.Request),
	}
	if id, secret, ok := c.Request.BasicAuth(); ok {
		if req.ClientID == "" {
			req.ClientID = id
		}
		if req.ClientSecret == "" {
			req.ClientSecret = secret
		}
	}

	resp, err := s.oauth.Exchange(c.Request.Context(), req)
	if err != nil {
		writeOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleJWKS(c *gin.Context) {
	body, err := token.KeySetJSON(c.Request.Context(), s.keys)
	if err != nil {
		core.LoggerFromCtx(c.Request.Context()).Error("publish key set failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "JWT public key not configured"})
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/json", body)
}

// handleSetup registers a client. It is gated by the SETUP_SECRET bearer.
func (s *Server) handleSetup(c *gin.Context) {
	if s.opts.SetupSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_not_configured"})
		return
	}

	secret, ok := token.BearerToken(c.Request)
	if !ok || subtle.ConstantTimeCompare([]byte(secret), []byte(s.opts.SetupSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "error_description": err.Error()})
		return
	}

	client := &core.Client{
		ID:           strings.TrimSpace(req.ClientID),
		Secret:       req.ClientSecret,
		RedirectURIs: req.RedirectURIs,
	}
	if err := s.oauth.Clients().Register(c.Request.Context(), client); err != nil {
		if errors.Is(err, oauth.ErrInvalidClientRecord) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "error_description": err.Error()})
			return
		}
		core.LoggerFromCtx(c.Request.Context()).Error("register client failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	core.LoggerFromCtx(c.Request.Context()).Info("client registered", "client_id", client.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Client registered successfully"})
}
