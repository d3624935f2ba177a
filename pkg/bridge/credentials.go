package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-training/hatena-mcp/pkg/core"
)

const userKeyPrefix = "user:"

// ErrNotLinked is returned when a user has no Hatena credential yet.
var ErrNotLinked = errors.New("hatena account not linked")

// CredentialStore keeps the per-user Hatena credential and saved blogs.
// Records never expire.
//
// Updates are read-modify-write without a lock; concurrent updates for the
// same user may lose one of the writes.
type CredentialStore struct {
	kv  core.KeyValueStore
	now func() time.Time
}

// NewCredentialStore returns a store backed by kv.
func NewCredentialStore(kv core.KeyValueStore) *CredentialStore {
	return &CredentialStore{kv: kv, now: time.Now}
}

// Get returns the user's record, or core.ErrNotFound.
func (s *CredentialStore) Get(ctx context.Context, userID string) (*core.UserState, error) {
	if userID == "" {
		return nil, core.ErrNotFound
	}
	data, err := s.kv.Get(ctx, userKeyPrefix+userID)
	if err != nil {
		return nil, err
	}
	var st core.UserState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}
	return &st, nil
}

// Credential returns the linked credential or ErrNotLinked.
func (s *CredentialStore) Credential(ctx context.Context, userID string) (*core.UserCredential, error) {
	st, err := s.Get(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrNotLinked
	}
	if err != nil {
		return nil, err
	}
	if st.Hatena == nil || st.Hatena.AccessToken == "" {
		return nil, ErrNotLinked
	}
	return st.Hatena, nil
}

// Link stores cred for the user. A nil cred.Blogs keeps the blogs saved so far.
func (s *CredentialStore) Link(ctx context.Context, userID string, cred core.UserCredential) (*core.UserState, error) {
	return s.update(ctx, userID, func(st *core.UserState) error {
		if cred.Blogs == nil && st.Hatena != nil {
			cred.Blogs = st.Hatena.Blogs
		}
		st.Hatena = &cred
		return nil
	})
}

// SaveBlog adds blog to the user's list. An entry with the same id is
// updated; its title and URL are kept when blog leaves them empty.
func (s *CredentialStore) SaveBlog(ctx context.Context, userID string, blog core.BlogInfo) (*core.UserState, error) {
	if blog.BlogID == "" {
		return nil, errors.New("blog id is required")
	}
	return s.update(ctx, userID, func(st *core.UserState) error {
		if st.Hatena == nil || st.Hatena.AccessToken == "" {
			return ErrNotLinked
		}
		i := slices.IndexFunc(st.Hatena.Blogs, func(b core.BlogInfo) bool { return b.BlogID == blog.BlogID })
		if i >= 0 {
			prev := st.Hatena.Blogs[i]
			if blog.Title == "" {
				blog.Title = prev.Title
			}
			if blog.URL == "" {
				blog.URL = prev.URL
			}
			st.Hatena.Blogs[i] = blog
		} else {
			st.Hatena.Blogs = append(st.Hatena.Blogs, blog)
		}
		return nil
	})
}

// Clear drops the user's Hatena credential and saved blogs. The user record
// itself is kept.
func (s *CredentialStore) Clear(ctx context.Context, userID string) error {
	_, err := s.update(ctx, userID, func(st *core.UserState) error {
		st.Hatena = nil
		return nil
	})
	return err
}

func (s *CredentialStore) update(ctx context.Context, userID string, fn func(*core.UserState) error) (*core.UserState, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	now := s.now().UTC().Format(time.RFC3339)

	st, err := s.Get(ctx, userID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		st = &core.UserState{CreatedAt: now}
	case err != nil:
		return nil, err
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	st.UpdatedAt = now

	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode user %s: %w", userID, err)
	}
	if err := s.kv.Put(ctx, userKeyPrefix+userID, data, core.NoExpiry); err != nil {
		return nil, err
	}
	return st, nil
}
