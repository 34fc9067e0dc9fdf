package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/at-ishikawa/surveygen/internal/auth"
	"github.com/at-ishikawa/surveygen/internal/bootstrap"
	"github.com/at-ishikawa/surveygen/internal/cache"
	"github.com/at-ishikawa/surveygen/internal/config"
	"github.com/at-ishikawa/surveygen/internal/database"
	"github.com/at-ishikawa/surveygen/internal/generation"
	"github.com/at-ishikawa/surveygen/internal/generation/fake"
	"github.com/at-ishikawa/surveygen/internal/generation/openai"
	"github.com/at-ishikawa/surveygen/internal/orchestrator"
	"github.com/at-ishikawa/surveygen/internal/ratelimit"
	"github.com/at-ishikawa/surveygen/internal/server"
	"github.com/at-ishikawa/surveygen/internal/valkey"
)

var (
	configFile  string
	debugMode   bool
	autoMigrate bool
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "surveygen-server",
		Short:         "Survey generation HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(debugMode)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	rootCmd.Flags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug mode")
	rootCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "Create the surveys table before serving")
	return rootCmd
}

func setupLogger(debugMode bool) {
	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		})),
	)
}

// cacheBackend is the cache as the server uses it: the request path and the stats endpoint.
type cacheBackend interface {
	cache.Store
	cache.Catalog
}

func run(ctx context.Context) error {
	app := bootstrap.New()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.SecretToken == "" {
		slog.Default().Warn("SECRET_TOKEN is not set; every generation request will be rejected")
	}

	store, pinger, err := newCache(ctx, app, cfg.Database)
	if err != nil {
		return err
	}

	limiter, err := newLimiter(ctx, app, cfg)
	if err != nil {
		return err
	}

	generator, err := newGenerator(app, cfg)
	if err != nil {
		return err
	}

	gate := auth.NewGate(cfg.Auth.SecretToken)
	o := orchestrator.New(gate, limiter, store, generator,
		orchestrator.WithTimeout(cfg.Generation.Timeout),
		orchestrator.WithStrictQuestions(cfg.Generation.StrictQuestions),
	)
	handler := server.NewHandler(o, store, gate, pinger)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.CORS(
			server.RequestLogger(h2c.NewHandler(handler.Routes(), &http2.Server{})),
			cfg.Server.CORS.AllowedOrigins,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.AddShutdownHook("http server", srv.Shutdown)

	return app.Run(ctx, func(ctx context.Context) error {
		slog.Default().Info("Starting server",
			"addr", srv.Addr,
			"database", cfg.Database.Driver,
			"rateLimit", cfg.RateLimit.Backend,
			"generator", cfg.Generation.Provider,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("config.NewConfigLoader() > %w", err)
	}
	return loader.Load()
}

func newCache(ctx context.Context, app *bootstrap.App, cfg config.DatabaseConfig) (cacheBackend, server.Pinger, error) {
	if cfg.Driver == database.DriverMemory {
		slog.Default().Warn("Using the in-memory cache; surveys are lost on restart")
		return cache.NewMemoryStore(), nil, nil
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	app.AddShutdownHook("database", func(ctx context.Context) error {
		return db.Close()
	})
	if autoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	store := cache.NewDBStore(db)
	return store, store, nil
}

func newLimiter(ctx context.Context, app *bootstrap.App, cfg *config.Config) (ratelimit.Limiter, error) {
	if cfg.RateLimit.Backend == "valkey" {
		client, err := valkey.NewClient(valkey.Config{
			Address:   cfg.Valkey.Address,
			Password:  cfg.Valkey.Password,
			DB:        cfg.Valkey.DB,
			KeyPrefix: cfg.Valkey.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("connect valkey: %w", err)
		}
		app.AddShutdownHook("valkey", func(ctx context.Context) error {
			client.Close()
			return nil
		})
		return ratelimit.NewValkeyLimiter(client, cfg.RateLimit.Limit, cfg.RateLimit.Window), nil
	}

	limiter := ratelimit.NewFixedWindow(cfg.RateLimit.Limit, cfg.RateLimit.Window)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go limiter.RunSweeper(sweepCtx, cfg.RateLimit.SweepInterval)
	app.AddShutdownHook("rate limit sweeper", func(ctx context.Context) error {
		stopSweeper()
		return nil
	})
	return limiter, nil
}

func newGenerator(app *bootstrap.App, cfg *config.Config) (generation.Generator, error) {
	var generator generation.Generator
	switch cfg.Generation.Provider {
	case "fake":
		slog.Default().Warn("Using the fake generator")
		generator = fake.New()
	default:
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required")
		}
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.Temperature)
		slog.Default().Info("Using the OpenAI generator", "model", client.GetModel(), "baseURL", cfg.OpenAI.BaseURL)
		app.AddShutdownHook("openai client", func(ctx context.Context) error {
			return client.Close()
		})
		generator = client
	}
	return generation.WithRetry(generator, cfg.Generation.RetryAttempts, cfg.Generation.RetryDelay), nil
}
