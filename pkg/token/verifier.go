package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-training/hatena-mcp/pkg/core"
	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// Verifier validates bearer tokens issued by Issuer.
type Verifier struct {
	keys KeyProvider
	now  func() time.Time
}

// NewVerifier returns a Verifier that trusts every key published by keys.
func NewVerifier(keys KeyProvider) *Verifier {
	return &Verifier{keys: keys, now: time.Now}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(bearerPrefix) || !strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(auth[len(bearerPrefix):])
	return tok, tok != ""
}

// Verify authenticates r. The token must be signed by a published key, carry
// iss == issuer, be unexpired, and list at least one of resources or the
// issuer itself in aud.
func (v *Verifier) Verify(ctx context.Context, r *http.Request, issuer string, resources ...string) (*core.Identity, error) {
	raw, ok := BearerToken(r)
	if !ok {
		return nil, core.NewError(core.ErrMissingToken, "missing bearer token")
	}
	return v.VerifyToken(ctx, raw, issuer, resources...)
}

// VerifyToken is Verify for an already extracted token.
func (v *Verifier) VerifyToken(ctx context.Context, raw, issuer string, resources ...string) (*core.Identity, error) {
	keys, err := v.keys.PublicKeys(ctx)
	if err != nil {
		return nil, core.WrapError(core.ErrServerError, "signing keys not configured", err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{Algorithm}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, keyFunc(keys)); err != nil {
		return nil, invalidToken(err)
	}

	aud, err := claims.GetAudience()
	if err != nil || !audienceAccepted(aud, slices.Concat(resources, []string{issuer})) {
		return nil, invalidToken(errors.New("audience mismatch"))
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, core.NewError(core.ErrNoSubject, "token has no subject")
	}

	id := &core.Identity{
		UserID: sub,
		Claims: map[string]any(claims),
	}
	id.ClientID, _ = claims["client_id"].(string)
	id.Scope, _ = claims["scope"].(string)
	return id, nil
}

// invalidToken hides which check failed; the cause stays available to logs via Unwrap.
func invalidToken(cause error) error {
	return core.WrapError(core.ErrInvalidToken, "", cause)
}

func keyFunc(keys []*PublicKey) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return keys[0].Key, nil
		}
		for _, k := range keys {
			if k.KeyID == kid {
				return k.Key, nil
			}
		}
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
}

func audienceAccepted(aud jwt.ClaimStrings, accepted []string) bool {
	for _, a := range aud {
		for _, want := range accepted {
			if want != "" && a == want {
				return true
			}
		}
	}
	return false
}
