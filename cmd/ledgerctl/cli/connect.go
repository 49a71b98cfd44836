package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/retail-ledger/internal/app"
	"github.com/odyssey-erp/retail-ledger/internal/platform/cache"
	"github.com/odyssey-erp/retail-ledger/internal/platform/db"
)

// Connect opens PostgreSQL, Redis and the job queue the way the API does. Redis
// is optional for every command except the jobs ones.
func Connect(ctx context.Context, envFile string) (*Backend, error) {
	cfg, err := app.LoadConfigFrom(envFile)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4})
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
	}

	jobsCLI, err := NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		pool.Close()
		return nil, err
	}

	ledgerApp := app.WireLedger(pool, redisClient, cfg, logger, nil)
	return &Backend{
		Accounts:   ledgerApp.Services.Accounts,
		Reports:    ledgerApp.Services.Reports,
		Regulatory: ledgerApp.Services.Regulatory,
		Jobs:       jobsCLI,
		Close: func() error {
			var errs []error
			errs = append(errs, jobsCLI.Close())
			if redisClient != nil {
				errs = append(errs, redisClient.Close())
			}
			pool.Close()
			return errors.Join(errs...)
		},
	}, nil
}
