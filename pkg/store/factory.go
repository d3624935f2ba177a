package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-training/hatena-mcp/pkg/core"
)

// StoreType represents the type of store backend.
type StoreType string

const (
	// StoreTypeMemory represents in-memory storage. State is lost on restart.
	StoreTypeMemory StoreType = "memory"
	// StoreTypeRedis represents Redis storage.
	StoreTypeRedis StoreType = "redis"
)

// Config contains configuration for creating a store.
type Config struct {
	// Type specifies the store type (memory or redis).
	Type StoreType
	// Redis contains Redis-specific configuration.
	Redis RedisOptions
}

// Factory creates store instances based on configuration.
type Factory struct {
	config Config
}

// NewFactory creates a new store factory with the provided configuration.
func NewFactory(config Config) *Factory {
	return &Factory{
		config: config,
	}
}

// Create creates and returns a new key-value store based on the factory configuration.
// Returns an error if the store type is invalid or if store creation fails.
func (f *Factory) Create() (core.KeyValueStore, error) {
	switch f.config.Type {
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	case StoreTypeRedis:
		return NewRedisStoreFromOptions(f.config.Redis)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", f.config.Type)
	}
}

// NewStore is a convenience function that creates a store directly from configuration.
// It's equivalent to NewFactory(config).Create().
func NewStore(config Config) (core.KeyValueStore, error) {
	return NewFactory(config).Create()
}

// Open creates the configured store and, for Redis, verifies the connection.
// The returned close function releases backend resources and is never nil.
func Open(ctx context.Context, config Config) (core.KeyValueStore, func(), error) {
	s, err := NewStore(config)
	if err != nil {
		return nil, nil, err
	}

	rs, ok := s.(*RedisStore)
	if !ok {
		slog.Info("Using in-memory store")
		return s, func() {}, nil
	}
	if err := rs.Ping(ctx); err != nil {
		rs.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", config.Redis.Addr, err)
	}
	slog.Info("Using Redis store", "addr", config.Redis.Addr, "db", config.Redis.DB)
	return rs, rs.Close, nil
}

// ParseStoreType parses a string into a StoreType.
// Returns StoreTypeMemory for invalid inputs.
func ParseStoreType(s string) StoreType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "redis":
		return StoreTypeRedis
	default:
		return StoreTypeMemory
	}
}

// String returns the string representation of a StoreType.
func (t StoreType) String() string {
	return string(t)
}

// IsValid returns true if the StoreType is valid.
func (t StoreType) IsValid() bool {
	switch t {
	case StoreTypeMemory, StoreTypeRedis:
		return true
	default:
		return false
	}
}

// RedisConfig creates a Redis store configuration with the provided options.
func RedisConfig(redisOpts RedisOptions) Config {
	return Config{
		Type:  StoreTypeRedis,
		Redis: redisOpts,
	}
}

// MemoryConfig creates a memory store configuration.
func MemoryConfig() Config {
	return Config{
		Type: StoreTypeMemory,
	}
}
