// Package app wires the ledger services from configuration. The commands
// under cmd/ share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"storeledger/internal/core/lock"
	corenumerator "storeledger/internal/core/numerator"
	"storeledger/internal/domain/documents/issue_bill"
	"storeledger/internal/domain/documents/purchase_invoice"
	"storeledger/internal/domain/registers/stock"
	"storeledger/internal/domain/reports"
	"storeledger/internal/infrastructure/metrics"
	"storeledger/internal/infrastructure/numerator"
	"storeledger/internal/infrastructure/redislock"
	"storeledger/internal/infrastructure/storage/postgres"
	"storeledger/internal/infrastructure/storage/postgres/register_repo"
	"storeledger/pkg/config"
	"storeledger/pkg/logger"
)

// App holds the wired services of one process.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Pool     *postgres.Pool
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Stock    *stock.Service
	Reports  *reports.Service
	Invoices *purchase_invoice.Service
	Issues   *issue_bill.Service

	closers []func()
}

// NewLogger builds the process logger from cfg and makes it the default.
func NewLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Development(),
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// Open connects to the database (and Redis, when configured) and builds
// the services. Close releases the connections.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	loc, err := cfg.Ledger.Location()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log}

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.DatabaseURL)
	poolCfg.ApplicationName = cfg.DB.ApplicationName
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, pool.Close)
	log.Infow("database connection established", "application_name", poolCfg.ApplicationName)

	locker, err := a.openLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		postgres.NewPoolCollector(pool),
	)
	a.Metrics = metrics.New(a.Registry)

	txm := postgres.NewTxManager(pool)
	repo := register_repo.NewStockRepo(txm)
	codes := numerator.New(pool)

	a.Stock = stock.NewService(repo, txm,
		stock.WithLocker(locker),
		stock.WithNumerator(codes),
		stock.WithMetrics(a.Metrics),
	)
	a.Reports = reports.NewService(repo, txm,
		reports.WithLocation(loc),
		reports.WithMetrics(a.Metrics),
	)
	a.Invoices = purchase_invoice.NewService(a.Stock)
	a.Issues = issue_bill.NewService(a.Stock, codes,
		issue_bill.WithStrategy(corenumerator.ParseStrategy(cfg.Ledger.NumeratorStrategy)),
	)

	return a, nil
}

func (a *App) openLocker(ctx context.Context) (lock.Locker, error) {
	if a.Config.Lock.Backend != config.LockBackendRedis {
		return lock.NewLocal(), nil
	}

	rcfg := redislock.DefaultConfig(a.Config.Lock.RedisAddress)
	rcfg.TTL = a.Config.Lock.TTL

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	locker, rdb, err := redislock.New(pingCtx, rcfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	a.Log.Infow("using redis item locks", "addr", rcfg.Addr, "ttl", rcfg.TTL)
	return locker, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
