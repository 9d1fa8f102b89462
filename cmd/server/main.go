// Package main is the entry point for the retailpos API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"retailpos/internal/app"
	"retailpos/internal/core/idempotency"
	"retailpos/internal/infrastructure/cache"
	v1 "retailpos/internal/infrastructure/http/v1"
	"retailpos/internal/infrastructure/http/v1/handlers"
	"retailpos/internal/infrastructure/metrics"
	"retailpos/internal/infrastructure/storage/memory"
	"retailpos/internal/infrastructure/storage/postgres"
	"retailpos/internal/infrastructure/storage/redis"
	"retailpos/pkg/logger"
)

var version = "dev"

// keyStore is an idempotency store that can drop expired keys.
type keyStore interface {
	idempotency.Store
	PurgeExpired(ctx context.Context) (int64, error)
}

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Infow("starting retailpos server", "version", version)

	accounts := accountsFromEnv()
	idempotencyTTL := getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour)

	var (
		engine *app.Engine
		pool   *postgres.Pool
		keys   keyStore
	)

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		poolCfg := postgres.DefaultPoolConfig(dsn)
		if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
			poolCfg.MaxConns = int32(maxConns)
		}
		pool, err = postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()

		txOpts := postgres.DefaultTxOptions()
		txOpts.IsolationLevel, err = postgres.ParseIsolation(getEnv("TX_ISOLATION", "read_committed"))
		if err != nil {
			log.Fatalw("invalid TX_ISOLATION", "error", err)
		}
		txOpts.StatementTimeout = getEnvDuration("TX_STATEMENT_TIMEOUT", txOpts.StatementTimeout)
		txm := postgres.NewTxManagerWithOptions(pool, txOpts)

		storage, err := app.PostgresStorage(txm, getEnvInt("AUDIT_COMPRESS_THRESHOLD", postgres.DefaultCompressThreshold))
		if err != nil {
			log.Fatalw("failed to wire storage", "error", err)
		}
		items := cache.NewItemCache(storage.Catalog, pool.Pool)
		items.Start(ctx)
		defer items.Stop()
		storage.Catalog = items

		engine = app.New(storage, accounts)
		keys = postgres.NewIdempotencyStore(txm, idempotencyTTL)

		log.Infow("database connection established",
			"max_conns", poolCfg.MaxConns,
			"isolation", txOpts.IsolationLevel,
			"statement_timeout", txOpts.StatementTimeout,
		)
		go runEvery(ctx, getEnvDuration("POOL_STATS_INTERVAL", 5*time.Minute), func(ctx context.Context) {
			pool.LogStats(ctx)
		})
	} else {
		log.Warn("DATABASE_URL not set, running on the in-memory store")
		engine, _, _ = app.NewMemory(accounts)
		keys = memory.NewIdempotencyStore(idempotencyTTL)
	}

	if url := os.Getenv("REDIS_URL"); url != "" {
		client, err := redis.Connect(ctx, url)
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer client.Close()
		keys = redis.NewIdempotencyStore(client, idempotencyTTL)
		log.Info("idempotency keys kept in redis")
	}

	cfg := v1.RouterConfig{
		Engine: engine,
		Pool:   pool,
		Logger: log,
	}
	if getEnvBool("METRICS_ENABLED", true) {
		m := metrics.New()
		m.Attach(engine)
		cfg.Metrics = m
	}
	if getEnvBool("IDEMPOTENCY_ENABLED", true) {
		cfg.Idempotency = keys
		go runEvery(ctx, getEnvDuration("IDEMPOTENCY_PURGE_INTERVAL", time.Hour), func(ctx context.Context) {
			n, err := keys.PurgeExpired(ctx)
			if err != nil {
				log.Warnw("purge idempotency keys failed", "error", err)
				return
			}
			if n > 0 {
				log.Infow("idempotency keys purged", "count", n)
			}
		})
	}
	handlers.Version = version
	router := v1.NewRouter(cfg)

	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// runEvery calls fn every interval until ctx is done. A non-positive interval disables it.
func runEvery(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
