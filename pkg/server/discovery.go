package server

import (
	"net/http"

	"github.com/go-training/hatena-mcp/pkg/oauth"

	"github.com/gin-gonic/gin"
)

// authServerMetadata is the RFC 8414 document.
type authServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

// protectedResourceMetadata is the RFC 9728 document.
type protectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

func (s *Server) handleAuthServerMetadata(c *gin.Context) {
	base := s.origin(c.Request)
	c.JSON(http.StatusOK, authServerMetadata{
		Issuer:                            s.issuer(c.Request),
		AuthorizationEndpoint:             base + "/oauth/authorize",
		TokenEndpoint:                     base + "/oauth/token",
		JWKSURI:                           base + "/oauth/jwks",
		ResponseTypesSupported:            []string{oauth.ResponseTypeCode},
		GrantTypesSupported:               []string{oauth.GrantTypeAuthorizationCode},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "client_secret_basic"},
		CodeChallengeMethodsSupported:     []string{"S256"},
	})
}

// handleProtectedResource serves both the bare document, which names the MCP
// endpoint, and the per-resource variant some clients request.
func (s *Server) handleProtectedResource(c *gin.Context) {
	base := s.origin(c.Request)
	resource := base + MCPPath
	if name := c.Param("resource"); name != "" {
		resource = base + "/" + name
	}
	c.JSON(http.StatusOK, protectedResourceMetadata{
		Resource:               resource,
		AuthorizationServers:   []string{s.issuer(c.Request)},
		BearerMethodsSupported: []string{"header"},
	})
}
