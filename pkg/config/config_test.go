package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-training/hatena-mcp/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ADDR", "LOG_LEVEL", "OAUTH_ISSUER", "PUBLIC_URL", "SETUP_SECRET",
		"HATENA_CONSUMER_KEY", "HATENA_CONSUMER_SECRET", "HATENA_SCOPES",
		"JWT_PRIVATE_KEY", "JWT_PUBLIC_KEY", "JWT_FALLBACK_PUBLIC_KEYS",
		"OAUTH_CLIENT_ID", "OAUTH_CLIENT_SECRET", "OAUTH_REDIRECT_URIS",
		"STORE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	} {
		// t.Setenv restores the previous value when the test ends
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, store.StoreTypeMemory, cfg.Store.Type)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, defaultHatenaScopes, cfg.HatenaScopes)
	assert.Empty(t, cfg.ClientRedirectURIs)

	assert.Error(t, cfg.Validate())
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADDR", ":9000")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`ADDR=:7000
OAUTH_ISSUER=https://bridge.test/
HATENA_CONSUMER_KEY=ck
HATENA_CONSUMER_SECRET=cs
HATENA_SCOPES=read_public, write_public
OAUTH_CLIENT_ID=client
OAUTH_CLIENT_SECRET=secret
OAUTH_REDIRECT_URIS=https://a.test/cb,,https://b.test/cb
STORE=redis
REDIS_DB=2
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr, "process environment wins over the file")
	assert.Equal(t, "https://bridge.test", cfg.Issuer)
	assert.Equal(t, []string{"read_public", "write_public"}, cfg.HatenaScopes)
	assert.Equal(t, []string{"https://a.test/cb", "https://b.test/cb"}, cfg.ClientRedirectURIs)
	assert.Equal(t, store.StoreTypeRedis, cfg.Store.Type)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEmptyScopes(t *testing.T) {
	clearEnv(t)
	t.Setenv("HATENA_SCOPES", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.HatenaScopes)
}

func TestLoadInvalidRedisDB(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_DB", "two")

	_, err := Load("")
	assert.ErrorContains(t, err, "REDIS_DB")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			HatenaConsumerKey:    "ck",
			HatenaConsumerSecret: "cs",
			Store:                store.MemoryConfig(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing consumer", func(c *Config) { c.HatenaConsumerSecret = "" }, true},
		{"bad store", func(c *Config) { c.Store.Type = "sqlite" }, true},
		{"half client", func(c *Config) { c.ClientID = "id" }, true},
		{"client without redirects", func(c *Config) { c.ClientID, c.ClientSecret = "id", "s" }, true},
		{"full client", func(c *Config) {
			c.ClientID, c.ClientSecret = "id", "s"
			c.ClientRedirectURIs = []string{"https://a.test/cb"}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
