// Package config loads the server settings from a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-training/hatena-mcp/pkg/store"

	"github.com/joho/godotenv"
)

// Config holds every setting the serve command needs.
type Config struct {
	Addr     string
	LogLevel string

	// Issuer overrides the request origin as the iss claim when set.
	Issuer string
	// PublicURL overrides the request origin in discovery documents and callbacks.
	PublicURL   string
	SetupSecret string

	HatenaConsumerKey    string
	HatenaConsumerSecret string
	HatenaScopes         []string

	JWTPrivateKey         string
	JWTPublicKey          string
	JWTFallbackPublicKeys []string

	// Seed client registered at startup when both id and secret are set.
	ClientID           string
	ClientSecret       string
	ClientRedirectURIs []string

	Store store.Config
}

// Default scopes requested from Hatena.
var defaultHatenaScopes = []string{"read_public", "read_private", "write_public", "write_private"}

// Load reads envFile into the process environment (a missing file is not an
// error, existing variables win) and builds the Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	redisDB, err := envInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Addr:                  envString("ADDR", ":8080"),
		LogLevel:              os.Getenv("LOG_LEVEL"),
		Issuer:                strings.TrimRight(os.Getenv("OAUTH_ISSUER"), "/"),
		PublicURL:             strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),
		SetupSecret:           os.Getenv("SETUP_SECRET"),
		HatenaConsumerKey:     os.Getenv("HATENA_CONSUMER_KEY"),
		HatenaConsumerSecret:  os.Getenv("HATENA_CONSUMER_SECRET"),
		HatenaScopes:          envList("HATENA_SCOPES", ",", defaultHatenaScopes),
		JWTPrivateKey:         os.Getenv("JWT_PRIVATE_KEY"),
		JWTPublicKey:          os.Getenv("JWT_PUBLIC_KEY"),
		JWTFallbackPublicKeys: envList("JWT_FALLBACK_PUBLIC_KEYS", "\n", nil),
		ClientID:              os.Getenv("OAUTH_CLIENT_ID"),
		ClientSecret:          os.Getenv("OAUTH_CLIENT_SECRET"),
		ClientRedirectURIs:    envList("OAUTH_REDIRECT_URIS", ",", nil),
		Store: store.Config{
			Type: store.ParseStoreType(envString("STORE", string(store.StoreTypeMemory))),
			Redis: store.RedisOptions{
				Addr:     envString("REDIS_ADDR", "localhost:6379"),
				Password: os.Getenv("REDIS_PASSWORD"),
				DB:       redisDB,
			},
		},
	}
	return cfg, nil
}

// Validate reports settings that make the server unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.HatenaConsumerKey == "" || c.HatenaConsumerSecret == "" {
		errs = append(errs, errors.New("HATENA_CONSUMER_KEY and HATENA_CONSUMER_SECRET are required"))
	}
	if !c.Store.Type.IsValid() {
		errs = append(errs, fmt.Errorf("invalid store type %q", c.Store.Type))
	}
	if (c.ClientID == "") != (c.ClientSecret == "") {
		errs = append(errs, errors.New("OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET must be set together"))
	}
	if c.ClientID != "" && len(c.ClientRedirectURIs) == 0 {
		errs = append(errs, errors.New("OAUTH_REDIRECT_URIS is required with OAUTH_CLIENT_ID"))
	}
	return errors.Join(errs...)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// envList splits key on sep, dropping blank items. def applies only when
// key is unset; a key set to an empty value yields an empty list.
func envList(key, sep string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
