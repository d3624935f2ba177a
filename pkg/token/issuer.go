// Package token issues and verifies the RS256 bearer tokens handed to MCP clients.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// DefaultTTL is the lifetime of an access token when none is given.
const DefaultTTL = 3600 * time.Second

// Claims is the caller-supplied part of an access token.
type Claims struct {
	UserID   string
	ClientID string
	Scope    string
}

// AccessClaims is the JWT payload of an access token.
type AccessClaims struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

// Issuer signs access tokens with the provider's active key.
type Issuer struct {
	keys KeyProvider
	now  func() time.Time
}

// NewIssuer returns an Issuer backed by keys.
func NewIssuer(keys KeyProvider) *Issuer {
	return &Issuer{keys: keys, now: time.Now}
}

// Sign issues a compact JWS carrying sub, client_id, scope, iss, aud, iat and exp.
// A ttl <= 0 falls back to DefaultTTL.
func (i *Issuer) Sign(ctx context.Context, c Claims, issuer string, audience []string, ttl time.Duration) (string, error) {
	key, err := i.keys.SigningKey(ctx)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := i.now().Truncate(time.Second)
	claims := AccessClaims{
		ClientID: c.ClientID,
		Scope:    c.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = key.KeyID

	signed, err := tok.SignedString(key.Key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// PublishKeySet builds the JWKS document {"keys":[...]} for the given keys.
func PublishKeySet(keys ...*PublicKey) (jwk.Set, error) {
	set := jwk.NewSet()
	for _, k := range keys {
		key, err := k.JWK()
		if err != nil {
			return nil, err
		}
		if err := set.AddKey(key); err != nil {
			return nil, fmt.Errorf("add key %s: %w", k.KeyID, err)
		}
	}
	return set, nil
}

// KeySetJSON returns the JWKS document for every key the provider publishes.
func KeySetJSON(ctx context.Context, keys KeyProvider) ([]byte, error) {
	pub, err := keys.PublicKeys(ctx)
	if err != nil {
		return nil, err
	}
	set, err := PublishKeySet(pub...)
	if err != nil {
		return nil, err
	}
	return json.Marshal(set)
}
