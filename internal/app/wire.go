package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/retail-ledger/internal/accounting"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/regulatory"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/retail-ledger/internal/integration"
	"github.com/odyssey-erp/retail-ledger/internal/observability"
	"github.com/odyssey-erp/retail-ledger/internal/platform/cache"
)

// Ledger bundles the services shared by the API, the worker and ledgerctl.
type Ledger struct {
	Services accounting.Services
	Hooks    *integration.Hooks
	Cache    *cache.Versioned
}

// WireLedger builds every accounting service over one pool. A nil redis client
// disables report caching; a nil metrics skips instrumentation.
func WireLedger(pool *pgxpool.Pool, redisClient *redis.Client, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	reportCache := cache.NewVersioned(redisClient, cfg.ReportCacheTTL)

	journalService := journals.NewService(
		journals.NewRepository(pool),
		mappings.NewResolver(pool),
		reportCache,
		journals.Config{
			Prefix:       cfg.EntryPrefix,
			BaseCurrency: cfg.BaseCurrency,
			Location:     cfg.Location(),
		},
		logger.With(slog.String("module", "journals")),
	)
	if metrics != nil {
		journalService.WithObserver(metrics)
		if err := reports.SetupCacheMetrics(metrics.Registerer()); err != nil {
			logger.Warn("report cache metrics", slog.Any("error", err))
		}
	}

	services := accounting.Services{
		Accounts:   accounts.NewService(accounts.NewRepository(pool), logger.With(slog.String("module", "accounts"))),
		Journals:   journalService,
		Ledger:     ledger.NewService(ledger.NewRepository(pool), reportCache, logger.With(slog.String("module", "ledger"))),
		Reports:    reports.NewService(reports.NewRepository(pool), reportCache, logger.With(slog.String("module", "reports"))),
		Regulatory: regulatory.NewService(regulatory.NewRepository(pool), logger.With(slog.String("module", "regulatory"))),
	}
	return Ledger{
		Services: services,
		Hooks:    integration.NewHooks(journalService, logger.With(slog.String("module", "integration"))),
		Cache:    reportCache,
	}
}
