package store

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a throwaway Redis server and returns its address.
// The container is terminated when the test finishes.
func setupRedisContainer(t *testing.T) (string, error) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", err
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	return container.Endpoint(ctx, "")
}

func TestParseStoreType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected StoreType
	}{
		{
			name:     "parse memory lowercase",
			input:    "memory",
			expected: StoreTypeMemory,
		},
		{
			name:     "parse memory uppercase",
			input:    "MEMORY",
			expected: StoreTypeMemory,
		},
		{
			name:     "parse redis lowercase",
			input:    "redis",
			expected: StoreTypeRedis,
		},
		{
			name:     "parse redis mixed case with spaces",
			input:    " ReDiS ",
			expected: StoreTypeRedis,
		},
		{
			name:     "invalid input returns memory",
			input:    "invalid",
			expected: StoreTypeMemory,
		},
		{
			name:     "empty string returns memory",
			input:    "",
			expected: StoreTypeMemory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseStoreType(tt.input)
			if result != tt.expected {
				t.Errorf("ParseStoreType(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStoreType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		storeType StoreType
		expected  bool
	}{
		{
			name:      "memory is valid",
			storeType: StoreTypeMemory,
			expected:  true,
		},
		{
			name:      "redis is valid",
			storeType: StoreTypeRedis,
			expected:  true,
		},
		{
			name:      "invalid type",
			storeType: StoreType("invalid"),
			expected:  false,
		},
		{
			name:      "empty type",
			storeType: StoreType(""),
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.storeType.IsValid()
			if result != tt.expected {
				t.Errorf("StoreType.IsValid() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestFactory_Create_Memory(t *testing.T) {
	factory := NewFactory(MemoryConfig())

	store, err := factory.Create()
	if err != nil {
		t.Fatalf("Factory.Create() error = %v, want nil", err)
	}

	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Factory.Create() returned %T, want *MemoryStore", store)
	}
}

func TestFactory_Create_InvalidType(t *testing.T) {
	factory := NewFactory(Config{Type: StoreType("invalid")})

	store, err := factory.Create()
	if err == nil {
		t.Error("Factory.Create() with invalid type should return error")
	}
	if store != nil {
		t.Error("Factory.Create() with invalid type should return nil store")
	}
}

func TestOpen_Memory(t *testing.T) {
	s, closeFn, err := Open(context.Background(), MemoryConfig())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer closeFn()

	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Open() returned %T, want *MemoryStore", s)
	}
}

func TestOpen_RedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := Open(ctx, RedisConfig(RedisOptions{Addr: "127.0.0.1:1"}))
	if err == nil {
		t.Error("Open() against an unreachable redis should fail")
	}
}

func TestFactory_Create_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	redisAddr, err := setupRedisContainer(t)
	if err != nil {
		t.Skipf("Failed to setup Redis container: %v", err)
	}

	s, closeFn, err := Open(context.Background(), RedisConfig(RedisOptions{
		Addr:   redisAddr,
		Prefix: "factory-test:",
	}))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer closeFn()

	if _, ok := s.(*RedisStore); !ok {
		t.Fatalf("Open() returned %T, want *RedisStore", s)
	}

	ctx := context.Background()
	if err := s.Put(ctx, "auth_code:c", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := s.Take(ctx, "auth_code:c")
	if err != nil || string(got) != "v" {
		t.Fatalf("Take() = %q, %v", got, err)
	}
	if _, err := s.Take(ctx, "auth_code:c"); err == nil {
		t.Error("second Take() should fail")
	}
}
