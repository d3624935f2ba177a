// Package bridge links a local user to a Hatena account through the OAuth 1.0a
// three-legged flow and keeps the resulting credential.
//
// A flow moves from idle to request-token-issued (correlation written under
// the local state and the request token), then callback-received (correlation
// taken, sibling alias deleted), then linked once the verifier is exchanged.
// A failed exchange has already consumed the correlation, so the user starts over.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-training/hatena-mcp/pkg/core"
	"github.com/go-training/hatena-mcp/pkg/hatena"

	"github.com/google/uuid"
)

var (
	// ErrMissingCallbackParams is returned when oauth_token or oauth_verifier is absent.
	ErrMissingCallbackParams = errors.New("missing oauth params")
	// ErrCorrelationNotFound is returned when no live correlation matches the callback.
	ErrCorrelationNotFound = errors.New("invalid or expired state")
	// ErrExchangeFailed is returned when Hatena rejects the verifier.
	ErrExchangeFailed = errors.New("failed to complete authorization")
)

// Upstream is the part of the Hatena client the flow needs.
type Upstream interface {
	GetRequestToken(ctx context.Context, callbackURL string) (*hatena.RequestToken, error)
	ExchangeAccessToken(ctx context.Context, requestToken, requestTokenSecret, verifier string) (*hatena.AccessToken, error)
	AuthorizeURL(requestToken, state string) string
}

// StartResult is returned to the MCP client that began linking.
type StartResult struct {
	AuthorizeURL string `json:"authorizeUrl"`
	State        string `json:"state"`
}

// Callback holds the query parameters Hatena sends back.
type Callback struct {
	State      string
	OAuthToken string
	Verifier   string
}

// Bridge runs the upstream authorization flow.
type Bridge struct {
	upstream     Upstream
	correlations *CorrelationStore
	credentials  *CredentialStore
	now          func() time.Time
}

// New returns a Bridge storing its state in kv.
func New(upstream Upstream, kv core.KeyValueStore) *Bridge {
	return &Bridge{
		upstream:     upstream,
		correlations: NewCorrelationStore(kv),
		credentials:  NewCredentialStore(kv),
		now:          time.Now,
	}
}

// Credentials exposes the per-user credential store.
func (b *Bridge) Credentials() *CredentialStore {
	return b.credentials
}

// Start obtains a request token and returns the URL the user must visit.
// Hatena may not echo state on the callback, so the correlation is also
// stored under the request token.
func (b *Bridge) Start(ctx context.Context, userID, callbackURL string) (*StartResult, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	rt, err := b.upstream.GetRequestToken(ctx, callbackURL)
	if err != nil {
		return nil, err
	}

	state := uuid.New().String()
	rec := &core.CorrelationState{
		UserID:             userID,
		State:              state,
		RequestToken:       rt.Token,
		RequestTokenSecret: rt.Secret,
		CreatedAt:          b.now().UTC().Format(time.RFC3339),
	}
	if err := b.correlations.Put(ctx, state, rec); err != nil {
		return nil, fmt.Errorf("store correlation: %w", err)
	}
	if err := b.correlations.Put(ctx, rt.Token, rec); err != nil {
		return nil, fmt.Errorf("store correlation: %w", err)
	}

	core.LoggerFromCtx(ctx).Info("hatena authorization started", "user_id", userID)
	return &StartResult{
		AuthorizeURL: b.upstream.AuthorizeURL(rt.Token, state),
		State:        state,
	}, nil
}

// Complete handles the callback: it consumes the correlation, exchanges the
// verifier and stores the credential for the user that started the flow.
func (b *Bridge) Complete(ctx context.Context, cb Callback) (*core.UserState, error) {
	if cb.OAuthToken == "" || cb.Verifier == "" {
		return nil, ErrMissingCallbackParams
	}

	rec, err := b.take(ctx, cb)
	if err != nil {
		return nil, err
	}

	at, err := b.upstream.ExchangeAccessToken(ctx, rec.RequestToken, rec.RequestTokenSecret, cb.Verifier)
	if err != nil {
		core.LoggerFromCtx(ctx).Error("hatena access token exchange failed", "user_id", rec.UserID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	st, err := b.credentials.Link(ctx, rec.UserID, core.UserCredential{
		AccessToken:  at.Token,
		AccessSecret: at.Secret,
		HatenaID:     at.HatenaID,
	})
	if err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	core.LoggerFromCtx(ctx).Info("hatena account linked", "user_id", rec.UserID, "hatena_id", at.HatenaID)
	return st, nil
}

// take consumes the correlation by state, falling back to the request token,
// and invalidates both aliases once the request token matches.
func (b *Bridge) take(ctx context.Context, cb Callback) (*core.CorrelationState, error) {
	var (
		rec *core.CorrelationState
		err error
	)
	if cb.State != "" {
		rec, err = b.correlations.Take(ctx, cb.State)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
	}
	if rec == nil {
		rec, err = b.correlations.Take(ctx, cb.OAuthToken)
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrCorrelationNotFound
		}
		if err != nil {
			return nil, err
		}
	}

	// a mismatched token leaves the token alias for the real callback
	if rec.RequestToken != cb.OAuthToken {
		return nil, ErrCorrelationNotFound
	}

	// one of these was just taken; deleting it again is a no-op
	b.correlations.Delete(ctx, rec.State)
	b.correlations.Delete(ctx, rec.RequestToken)
	return rec, nil
}
