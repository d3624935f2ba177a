package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-training/hatena-mcp/pkg/core"
)

const (
	correlationKeyPrefix = "oauth_state:"

	// CorrelationTTL bounds how long a user has to approve on Hatena.
	CorrelationTTL = 600 * time.Second
)

// CorrelationStore keeps in-flight upstream authorizations. It knows nothing
// about aliasing; Bridge writes each record under two keys.
type CorrelationStore struct {
	kv core.KeyValueStore
}

// NewCorrelationStore returns a store backed by kv.
func NewCorrelationStore(kv core.KeyValueStore) *CorrelationStore {
	return &CorrelationStore{kv: kv}
}

// Put stores rec under key for CorrelationTTL.
func (s *CorrelationStore) Put(ctx context.Context, key string, rec *core.CorrelationState) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode correlation state: %w", err)
	}
	return s.kv.Put(ctx, correlationKeyPrefix+key, data, CorrelationTTL)
}

// Take returns the record under key and removes it, or core.ErrNotFound.
func (s *CorrelationStore) Take(ctx context.Context, key string) (*core.CorrelationState, error) {
	if key == "" {
		return nil, core.ErrNotFound
	}
	data, err := s.kv.Take(ctx, correlationKeyPrefix+key)
	if err != nil {
		return nil, err
	}
	var rec core.CorrelationState
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode correlation state: %w", err)
	}
	return &rec, nil
}

// Delete removes key. Failures are logged, never returned.
func (s *CorrelationStore) Delete(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.kv.Delete(ctx, correlationKeyPrefix+key); err != nil {
		core.LoggerFromCtx(ctx).Warn("failed to delete correlation alias", "error", err)
	}
}
