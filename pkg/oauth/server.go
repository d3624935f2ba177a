// Package oauth implements the authorization-code grant of the OAuth 2.0
// authorization server: client registry, one-time codes, PKCE and token
// exchange. It has no HTTP dependency; pkg/server maps its errors to responses.
package oauth

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/go-training/hatena-mcp/pkg/core"
	"github.com/go-training/hatena-mcp/pkg/token"

	"github.com/google/uuid"
)

const (
	// GrantTypeAuthorizationCode is the only grant this server supports.
	GrantTypeAuthorizationCode = "authorization_code"
	// ResponseTypeCode is the only response type this server supports.
	ResponseTypeCode = "code"
	// TokenTypeBearer is returned in every token response.
	TokenTypeBearer = "Bearer"
)

// AuthorizeRequest carries the query parameters of GET /oauth/authorize.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	State               string
	Scope               string
	Resource            string
	CodeChallenge       string
	CodeChallengeMethod string
}

// TokenRequest carries the form parameters of POST /oauth/token, with client
// credentials already merged from the body or HTTP Basic auth.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
	Resource     string
	// Issuer is the iss claim, and the audience when no resource resolves.
	Issuer string
}

// TokenResponse is the JSON body of a successful token exchange.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Server runs the authorization and token endpoints' logic.
type Server struct {
	clients  *ClientRegistry
	codes    *CodeStore
	issuer   *token.Issuer
	tokenTTL time.Duration
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithTokenTTL overrides the access token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithClock sets the time source for code expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
		s.codes.now = now
		s.clients.now = now
	}
}

// NewServer wires the engine over a key-value store and a key provider.
func NewServer(kv core.KeyValueStore, keys token.KeyProvider, opts ...Option) *Server {
	s := &Server{
		clients:  NewClientRegistry(kv),
		codes:    NewCodeStore(kv),
		issuer:   token.NewIssuer(keys),
		tokenTTL: token.DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clients exposes the registry used by the setup endpoint.
func (s *Server) Clients() *ClientRegistry {
	return s.clients
}

// Authorize validates req, issues a code for a freshly minted user id and
// returns the redirect URL carrying code and state.
// Every valid request is approved; there is no consent step.
func (s *Server) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	if req.ClientID == "" || req.RedirectURI == "" || req.ResponseType == "" {
		return "", core.NewError(core.ErrInvalidRequest, "Invalid authorization request")
	}
	if req.ResponseType != ResponseTypeCode {
		return "", core.NewError(core.ErrUnsupportedResponseType, "response_type must be code")
	}
	if !s.clients.VerifyRedirectURI(ctx, req.ClientID, req.RedirectURI) {
		return "", core.NewError(core.ErrInvalidRequest, "Invalid client or redirect_uri")
	}
	if req.CodeChallenge != "" && !ValidChallengeMethod(req.CodeChallengeMethod) {
		return "", core.NewError(core.ErrInvalidRequest, "unsupported code_challenge_method")
	}

	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", core.WrapError(core.ErrInvalidRequest, "malformed redirect_uri", err)
	}

	now := s.now()
	rec := &core.AuthorizationCode{
		Code:        uuid.New().String(),
		UserID:      uuid.New().String(),
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Scope:       req.Scope,
		Resource:    req.Resource,
		ExpiresAt:   now.Add(CodeTTL).UnixMilli(),
		CreatedAt:   now.UTC().Format(time.RFC3339),
	}
	if req.CodeChallenge != "" {
		rec.CodeChallenge = req.CodeChallenge
		rec.CodeChallengeMethod = req.CodeChallengeMethod
	}
	if err := s.codes.Issue(ctx, rec); err != nil {
		return "", core.WrapError(core.ErrServerError, "failed to store authorization code", err)
	}

	core.LoggerFromCtx(ctx).Debug("authorization code issued",
		"client_id", rec.ClientID,
		"user_id", rec.UserID,
		"resource", rec.Resource,
		"pkce", rec.CodeChallenge != "",
	)

	q := redirect.Query()
	q.Set("code", rec.Code)
	if req.State != "" {
		q.Set("state", req.State)
	}
	redirect.RawQuery = q.Encode()
	return redirect.String(), nil
}

// Exchange redeems an authorization code for a signed access token.
func (s *Server) Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.GrantType != GrantTypeAuthorizationCode {
		return nil, core.NewError(core.ErrUnsupportedGrantType, "")
	}
	if req.Code == "" || req.RedirectURI == "" || req.ClientID == "" || req.ClientSecret == "" {
		return nil, core.NewError(core.ErrInvalidRequest, "")
	}
	if !s.clients.VerifySecret(ctx, req.ClientID, req.ClientSecret) {
		return nil, core.NewError(core.ErrInvalidClient, "")
	}

	code, err := s.codes.Consume(ctx, req.Code)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NewError(core.ErrInvalidGrant, "")
		}
		return nil, core.WrapError(core.ErrServerError, "failed to read authorization code", err)
	}
	if code.RedirectURI != req.RedirectURI || code.ClientID != req.ClientID {
		return nil, core.NewError(core.ErrInvalidGrant, "")
	}

	resource := code.Resource
	if req.Resource != "" && code.Resource != "" && req.Resource != code.Resource {
		return nil, core.NewError(core.ErrInvalidTarget, "resource mismatch")
	}
	if resource == "" {
		resource = req.Resource
	}

	if code.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return nil, core.NewError(core.ErrInvalidGrant, "code_verifier required")
		}
		if !VerifyPKCE(code.CodeChallenge, code.CodeChallengeMethod, req.CodeVerifier) {
			return nil, core.NewError(core.ErrInvalidGrant, "PKCE verification failed")
		}
	}

	audience := []string{req.Issuer}
	if resource != "" {
		audience = []string{resource}
	}

	signed, err := s.issuer.Sign(ctx, token.Claims{
		UserID:   code.UserID,
		ClientID: code.ClientID,
		Scope:    code.Scope,
	}, req.Issuer, audience, s.tokenTTL)
	if err != nil {
		return nil, core.WrapError(core.ErrServerError, "", err)
	}

	core.LoggerFromCtx(ctx).Info("access token issued",
		"client_id", code.ClientID,
		"user_id", code.UserID,
		"audience", audience,
	)

	return &TokenResponse{
		AccessToken: signed,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(s.tokenTTL / time.Second),
	}, nil
}
