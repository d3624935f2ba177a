package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a KeyValueStore when a key is missing, consumed or expired.
var ErrNotFound = errors.New("key not found")

// NoExpiry marks a record that lives until it is explicitly deleted.
const NoExpiry time.Duration = 0

// KeyValueStore is the storage contract every stateful component is built on.
// Each key is independently addressable and expires on its own.
type KeyValueStore interface {
	// Put stores value under key. A ttl <= 0 keeps the record until deleted.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value or ErrNotFound. An expired record is removed and
	// reported exactly like a deleted one.
	Get(ctx context.Context, key string) ([]byte, error)
	// Take atomically reads and deletes key. At most one caller observes the value.
	Take(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// PKCE challenge methods accepted at /oauth/authorize.
const (
	CodeChallengePlain = "plain"
	CodeChallengeS256  = "S256"
)

// AuthorizationCode represents an OAuth 2.0 authorization code and its associated metadata.
// ExpiresAt is expressed in unix milliseconds.
type AuthorizationCode struct {
	Code                string `json:"code"`
	UserID              string `json:"user_id"`
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	Scope               string `json:"scope"`
	Resource            string `json:"resource,omitempty"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
	ExpiresAt           int64  `json:"expires_at"`
	CreatedAt           string `json:"created_at"`
}

// Expired reports whether the code is past its deadline at now.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.UnixMilli() > c.ExpiresAt
}

// Client represents a registered OAuth 2.0 client application.
type Client struct {
	ID           string   `json:"client_id"`
	Secret       string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
	CreatedAt    string   `json:"created_at"`
}

// CorrelationState links an in-flight Hatena authorization back to the user
// that started it. It is written under the local state and under the request token.
type CorrelationState struct {
	UserID             string `json:"user_id"`
	State              string `json:"state"`
	RequestToken       string `json:"request_token"`
	RequestTokenSecret string `json:"request_token_secret"`
	CreatedAt          string `json:"created_at"`
}

// BlogInfo is blog metadata a user saved for later tool calls.
type BlogInfo struct {
	BlogID string `json:"blog_id"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
}

// UserCredential is the delegated Hatena credential of one user.
type UserCredential struct {
	AccessToken  string     `json:"access_token"`
	AccessSecret string     `json:"access_secret"`
	HatenaID     string     `json:"hatena_id,omitempty"`
	Blogs        []BlogInfo `json:"blogs,omitempty"`
}

// UserState is the long-lived per-user record.
type UserState struct {
	Hatena    *UserCredential `json:"hatena,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}
