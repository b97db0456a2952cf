package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/pkordes/attraction-queue/internal/config"
	"github.com/pkordes/attraction-queue/internal/repo"
	"github.com/pkordes/attraction-queue/internal/repo/memstore"
	"github.com/pkordes/attraction-queue/internal/repo/redisstore"
	"github.com/pkordes/attraction-queue/migrations"
)

// openStore builds the configured backend and pings it, retrying with
// exponential backoff up to cfg.ConnectRetries times. The returned store is
// owned by the caller, who must Close it.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repo.Store, error) {
	var store repo.Store
	switch cfg.Backend {
	case config.BackendPostgres:
		// New() does not open connections immediately; the first query does.
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("create database pool: %w", err)
		}
		store = repo.NewPostgresStore(pool)
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		store = redisstore.New(redis.NewClient(opts))
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		return memstore.New(), nil
	}

	if err := pingWithRetry(ctx, store, cfg.ConnectRetries, logger); err != nil {
		store.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	logger.Info("store connection established", "backend", cfg.Backend)
	return store, nil
}

// pingWithRetry pings store until it answers, retries are exhausted, or ctx
// is canceled.
func pingWithRetry(ctx context.Context, store repo.Store, retries int, logger *slog.Logger) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)
	return backoff.RetryNotify(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return store.Ping(pingCtx)
	}, b, func(err error, wait time.Duration) {
		logger.Warn("store not reachable, retrying", "error", err, "retry_in", wait.String())
	})
}

// migrationProvider opens a database/sql handle for goose on top of the pgx
// driver. goose needs database/sql, not a pgx pool.
func migrationProvider(dsn string) (*goose.Provider, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open migration connection: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create goose provider: %w", err)
	}
	return provider, db, nil
}
