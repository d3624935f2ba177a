package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-training/hatena-mcp/pkg/bridge"
	"github.com/go-training/hatena-mcp/pkg/config"
	"github.com/go-training/hatena-mcp/pkg/core"
	"github.com/go-training/hatena-mcp/pkg/hatena"
	"github.com/go-training/hatena-mcp/pkg/logger"
	"github.com/go-training/hatena-mcp/pkg/oauth"
	"github.com/go-training/hatena-mcp/pkg/server"
	"github.com/go-training/hatena-mcp/pkg/store"
	"github.com/go-training/hatena-mcp/pkg/token"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	envFile       string
	addr          string
	logLevel      string
	storeType     string
	redisAddr     string
	redisPassword string
	redisDB       int
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(f.envFile)
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "dotenv file to load; missing files are ignored")
	cmd.Flags().StringVar(&f.addr, "addr", "", "address to listen on (overrides ADDR)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR). Defaults to DEBUG in development, INFO in production")
	cmd.Flags().StringVar(&f.storeType, "store", "", "Store type: memory or redis (overrides STORE)")
	cmd.Flags().StringVar(&f.redisAddr, "redis-addr", "", "Redis address (only used when store=redis)")
	cmd.Flags().StringVar(&f.redisPassword, "redis-password", "", "Redis password (only used when store=redis)")
	cmd.Flags().IntVar(&f.redisDB, "redis-db", 0, "Redis database (only used when store=redis)")
	return cmd
}

// apply overrides cfg with the flags given on the command line.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = f.addr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("store") {
		cfg.Store.Type = store.ParseStoreType(f.storeType)
	}
	if flags.Changed("redis-addr") {
		cfg.Store.Redis.Addr = f.redisAddr
	}
	if flags.Changed("redis-password") {
		cfg.Store.Redis.Password = f.redisPassword
	}
	if flags.Changed("redis-db") {
		cfg.Store.Redis.DB = f.redisDB
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger.NewWithLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	kv, closeStore, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	keys, err := token.NewProviderFromJWK(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTFallbackPublicKeys...)
	if err != nil {
		closeStore()
		return fmt.Errorf("load signing keys: %w", err)
	}
	if _, err := keys.SigningKey(ctx); err != nil {
		slog.Warn("JWT_PRIVATE_KEY is not set; the token endpoint will fail until it is configured")
	}

	authz := oauth.NewServer(kv, keys)
	if cfg.ClientID != "" {
		if err := authz.Clients().Register(ctx, &core.Client{
			ID:           cfg.ClientID,
			Secret:       cfg.ClientSecret,
			RedirectURIs: cfg.ClientRedirectURIs,
		}); err != nil {
			closeStore()
			return fmt.Errorf("register client %s: %w", cfg.ClientID, err)
		}
		slog.Info("Registered OAuth client from configuration", "client_id", cfg.ClientID)
	}

	upstream := hatena.NewClient(hatena.Config{
		ConsumerKey:    cfg.HatenaConsumerKey,
		ConsumerSecret: cfg.HatenaConsumerSecret,
		Scopes:         cfg.HatenaScopes,
	})
	b := bridge.New(upstream, kv)

	// request logging goes through slog; skip gin's debug route dump
	gin.SetMode(gin.ReleaseMode)
	handler := server.New(server.Options{
		Issuer:      cfg.Issuer,
		PublicURL:   cfg.PublicURL,
		SetupSecret: cfg.SetupSecret,
	}, authz, keys, b).Handler()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		// no WriteTimeout: GET /mcp holds an event stream open
		IdleTimeout: 60 * time.Second,
	}

	m := graceful.NewManager()
	m.AddRunningJob(func(_ context.Context) error {
		slog.Info("MCP HTTP server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			return err
		}
		return nil
	})
	m.AddShutdownJob(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		defer closeStore()
		slog.Info("Shutting down HTTP server")
		return srv.Shutdown(ctx)
	})

	<-m.Done()
	return nil
}
