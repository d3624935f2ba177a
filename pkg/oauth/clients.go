package oauth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-training/hatena-mcp/pkg/core"
)

const clientKeyPrefix = "client:"

// ErrInvalidClientRecord is returned by Register for incomplete clients.
var ErrInvalidClientRecord = errors.New("client_id, client_secret and redirect_uris are required")

// ClientRegistry stores registered OAuth2 clients. Clients never expire.
type ClientRegistry struct {
	kv  core.KeyValueStore
	now func() time.Time
}

// NewClientRegistry returns a registry backed by kv.
func NewClientRegistry(kv core.KeyValueStore) *ClientRegistry {
	return &ClientRegistry{kv: kv, now: time.Now}
}

// Register stores c under its id, replacing any client with the same id.
func (r *ClientRegistry) Register(ctx context.Context, c *core.Client) error {
	if c == nil || c.ID == "" || c.Secret == "" || len(c.RedirectURIs) == 0 {
		return ErrInvalidClientRecord
	}
	rec := *c
	rec.RedirectURIs = slices.Clone(c.RedirectURIs)
	if rec.CreatedAt == "" {
		rec.CreatedAt = r.now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("encode client: %w", err)
	}
	return r.kv.Put(ctx, clientKeyPrefix+rec.ID, data, core.NoExpiry)
}

// Get returns the client or core.ErrNotFound.
func (r *ClientRegistry) Get(ctx context.Context, clientID string) (*core.Client, error) {
	if clientID == "" {
		return nil, core.ErrNotFound
	}
	data, err := r.kv.Get(ctx, clientKeyPrefix+clientID)
	if err != nil {
		return nil, err
	}
	var c core.Client
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode client %s: %w", clientID, err)
	}
	return &c, nil
}

// VerifySecret reports whether the client exists and secret matches.
func (r *ClientRegistry) VerifySecret(ctx context.Context, clientID, secret string) bool {
	c, err := r.Get(ctx, clientID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			core.LoggerFromCtx(ctx).Error("client lookup failed", "client_id", clientID, "error", err)
		}
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) == 1
}

// VerifyRedirectURI reports whether the client exists and uri is one of its
// registered redirect URIs, compared literally.
func (r *ClientRegistry) VerifyRedirectURI(ctx context.Context, clientID, uri string) bool {
	c, err := r.Get(ctx, clientID)
	if err != nil {
		return false
	}
	return slices.Contains(c.RedirectURIs, uri)
}
