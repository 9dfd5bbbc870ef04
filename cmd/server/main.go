package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"vibecode.dev/vibe-code/internal/api"
	"vibecode.dev/vibe-code/internal/config"
	"vibecode.dev/vibe-code/internal/core"
	"vibecode.dev/vibe-code/internal/logging"
	"vibecode.dev/vibe-code/internal/ratelimit"
	"vibecode.dev/vibe-code/internal/store"
)

func main() {
	target := flag.String("target", "", "Deployment target: development, production or serverless (default from DEPLOYMENT_TARGET)")
	migrate := flag.Bool("migrate", false, "Create the database schema and exit")
	flag.Parse()

	cfg, err := config.Load(config.DeploymentTarget(*target))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, *migrate, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(cfg *config.Config, migrateOnly bool, logger *zap.Logger) error {
	mode := cfg.Mode()
	logger.Info("Starting Vibe Code server",
		zap.String("target", string(cfg.Target)),
		zap.String("mode", mode.String()),
		zap.String("port", cfg.HTTPPort),
		zap.String("cors_origin", cfg.CORSOrigin),
		zap.Bool("gemini_key_available", cfg.AI.GeminiAPIKey != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database store
	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.CreateSchema(ctx); err != nil {
		return err
	}
	if migrateOnly {
		logger.Info("Database schema is up to date, exiting", zap.String("driver", string(cfg.Storage.Driver)))
		return nil
	}
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn("Using in-memory storage, saved responses are lost on restart")
	}

	gen, closeGen, err := core.NewGenerator(ctx, cfg.AI, logger)
	if err != nil {
		return err
	}
	defer closeGen()

	generateLimit, generalLimit, closeLimiters, err := newLimiters(ctx, cfg.RateLimit, logger)
	if err != nil {
		return err
	}
	defer closeLimiters()

	service := core.NewResponseService(st, gen, logger)
	apiHandler := api.NewAPIHandler(service, api.ServerInfo{
		Environment:        string(cfg.Target),
		GeminiKeyAvailable: cfg.AI.GeminiAPIKey != "",
		Mode:               mode.String(),
	}, logger)
	router := api.NewRouter(apiHandler, api.RouterConfig{
		CORSOrigin:    cfg.CORSOrigin,
		Development:   cfg.IsDevelopment(),
		StaticDir:     cfg.StaticDir,
		MaxBodyBytes:  api.DefaultMaxBodyBytes,
		GenerateLimit: generateLimit,
		GeneralLimit:  generalLimit,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // Gemini calls can take time
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", srv.Addr, err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exiting gracefully")
	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	var driver string
	switch cfg.Driver {
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	case config.DriverSQLite:
		driver = store.DriverSQLite
	case config.DriverPostgres:
		driver = store.DriverPostgres
	case config.DriverMySQL:
		driver = store.DriverMySQL
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.NewSQLStore(connectCtx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", cfg.Driver, err)
	}
	return st, nil
}

// newLimiters returns the generate and general tiers. With REDIS_URL set,
// both tiers share counters across instances.
func newLimiters(ctx context.Context, cfg config.RateLimitConfig, logger *zap.Logger) (ratelimit.Tier, ratelimit.Tier, func(), error) {
	generate := ratelimit.Tier{Name: "generate", Requests: cfg.GenerateMaxRequests, Window: cfg.Window}
	general := ratelimit.Tier{Name: "general", Requests: cfg.MaxRequests, Window: cfg.Window}
	if cfg.RedisURL == "" {
		return generate, general, func() {}, nil
	}

	rdb, err := ratelimit.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return generate, general, nil, err
	}
	logger.Info("Rate limit counters stored in redis")

	generate.Counter = ratelimit.NewRedisCounter(rdb, "vibe:rate_limit:generate", logger)
	general.Counter = ratelimit.NewRedisCounter(rdb, "vibe:rate_limit:general", logger)
	closeFn := func() {
		if err := rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			logger.Warn("Error closing redis client", zap.Error(err))
		}
	}
	return generate, general, closeFn, nil
}
