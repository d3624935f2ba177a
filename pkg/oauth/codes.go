package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-training/hatena-mcp/pkg/core"
)

const (
	codeKeyPrefix = "auth_code:"

	// CodeTTL is how long an unredeemed authorization code stays valid.
	CodeTTL = 600 * time.Second

	// minStorageTTL keeps already-expired codes storable; Consume rejects them anyway.
	minStorageTTL = time.Second
)

// CodeStore holds one-time authorization codes keyed by code value.
type CodeStore struct {
	kv  core.KeyValueStore
	now func() time.Time
}

// NewCodeStore returns a code store backed by kv.
func NewCodeStore(kv core.KeyValueStore) *CodeStore {
	return &CodeStore{kv: kv, now: time.Now}
}

// Issue stores rec with a TTL running until rec.ExpiresAt.
func (s *CodeStore) Issue(ctx context.Context, rec *core.AuthorizationCode) error {
	if rec == nil || rec.Code == "" {
		return errors.New("authorization code is required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode authorization code: %w", err)
	}

	ttl := max(time.UnixMilli(rec.ExpiresAt).Sub(s.now()), 0)
	if ttl < minStorageTTL {
		ttl = minStorageTTL
	}
	return s.kv.Put(ctx, codeKeyPrefix+rec.Code, data, ttl)
}

// Consume returns the record for code exactly once. Unknown, redeemed and
// expired codes all yield core.ErrNotFound.
func (s *CodeStore) Consume(ctx context.Context, code string) (*core.AuthorizationCode, error) {
	if code == "" {
		return nil, core.ErrNotFound
	}
	data, err := s.kv.Take(ctx, codeKeyPrefix+code)
	if err != nil {
		return nil, err
	}

	var rec core.AuthorizationCode
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode authorization code: %w", err)
	}
	if rec.Expired(s.now()) {
		return nil, core.ErrNotFound
	}
	return &rec, nil
}
