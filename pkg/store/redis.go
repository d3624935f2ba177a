package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-training/hatena-mcp/pkg/core"
	"github.com/redis/rueidis"
)

// RedisStore implements core.KeyValueStore using Redis via rueidis.
// Expiry is delegated to Redis key TTLs and Take maps to GETDEL.
type RedisStore struct {
	client rueidis.Client
	prefix string
}

// NewRedisStore creates a new instance of RedisStore with the provided rueidis client.
func NewRedisStore(client rueidis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

// RedisOptions contains configuration for Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key, so several deployments can share a database.
	Prefix string
}

// NewRedisStoreFromOptions creates a new RedisStore with simplified options.
func NewRedisStoreFromOptions(opts RedisOptions) (*RedisStore, error) {
	clientOpts := rueidis.ClientOption{
		InitAddress: []string{opts.Addr},
		Password:    opts.Password,
		SelectDB:    opts.DB,
	}
	s, err := NewRedisStoreFromClientOption(clientOpts)
	if err != nil {
		return nil, err
	}
	s.prefix = opts.Prefix
	return s, nil
}

// NewRedisStoreFromClientOption creates a new RedisStore with full rueidis client options.
func NewRedisStoreFromClientOption(opts rueidis.ClientOption) (*RedisStore, error) {
	client, err := rueidis.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return NewRedisStore(client), nil
}

// Close closes the Redis client connection.
func (r *RedisStore) Close() {
	r.client.Close()
}

// Ping checks that the server is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Do(ctx, r.client.B().Ping().Build()).Error()
}

// Put stores value under key, with a millisecond TTL when ttl > 0.
func (r *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if value == nil {
		return ErrNilValue
	}

	var cmd rueidis.Completed
	if ttl > 0 {
		ms := ttl.Milliseconds()
		if ms < 1 {
			ms = 1
		}
		cmd = r.client.B().Set().Key(r.key(key)).Value(rueidis.BinaryString(value)).PxMilliseconds(ms).Build()
	} else {
		cmd = r.client.B().Set().Key(r.key(key)).Value(rueidis.BinaryString(value)).Build()
	}
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save key to redis: %w", err)
	}
	return nil
}

// Get retrieves the value stored under key.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	cmd := r.client.B().Get().Key(r.key(key)).Build()
	result, err := r.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key from redis: %w", err)
	}
	return result, nil
}

// Take reads and deletes key atomically with GETDEL.
func (r *RedisStore) Take(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	cmd := r.client.B().Getdel().Key(r.key(key)).Build()
	result, err := r.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to take key from redis: %w", err)
	}
	return result, nil
}

// Delete removes key from Redis. A missing key is not an error.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	cmd := r.client.B().Del().Key(r.key(key)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete key from redis: %w", err)
	}
	return nil
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}
