// Package postgres provides the PostgreSQL pool, transaction manager and
// schema for the stock ledger.
package postgres

import (
	"context"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"storeledger/pkg/logger"
)

// PoolConfig holds connection pool configuration.
type PoolConfig struct {
	DSN             string
	ApplicationName string

	// A movement holds one connection for its whole transaction, so
	// MaxConns bounds concurrent movements per process.
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultPoolConfig returns defaults for a ledger process.
func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:               dsn,
		ApplicationName:   "storeledger",
		MaxConns:          20,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// Pool wraps pgxpool.Pool.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects and pings the database. Every connection maps NUMERIC
// to decimal.Decimal.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	if cfg.ApplicationName != "" {
		pc.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}
	pc.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Close closes all connections in the pool.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

// LogStats logs the pool counters.
func (p *Pool) LogStats(ctx context.Context) {
	s := p.Stat()
	logger.Info(ctx, "database pool stats",
		"total", s.TotalConns(),
		"acquired", s.AcquiredConns(),
		"idle", s.IdleConns(),
		"max", s.MaxConns(),
		"acquire_count", s.AcquireCount(),
		"empty_acquire_count", s.EmptyAcquireCount(),
		"acquire_duration", s.AcquireDuration(),
	)
}

// StatSource is what PoolCollector reads; *Pool satisfies it.
type StatSource interface {
	Stat() *pgxpool.Stat
}

// PoolCollector exports pool counters to Prometheus at scrape time.
type PoolCollector struct {
	src StatSource

	conns        *prometheus.Desc
	maxConns     *prometheus.Desc
	acquires     *prometheus.Desc
	emptyAcquire *prometheus.Desc
	acquireWait  *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector creates a collector over src.
func NewPoolCollector(src StatSource) *PoolCollector {
	const ns, sub = "storeledger", "db_pool"
	return &PoolCollector{
		src: src,
		conns: prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "connections"),
			"Pool connections by state.", []string{"state"}, nil),
		maxConns: prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "max_connections"),
			"Configured maximum pool size.", nil, nil),
		acquires: prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "acquires_total"),
			"Successful connection acquires.", nil, nil),
		emptyAcquire: prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "empty_acquires_total"),
			"Acquires that had to wait for a connection.", nil, nil),
		acquireWait: prometheus.NewDesc(prometheus.BuildFQName(ns, sub, "acquire_seconds_total"),
			"Total time spent acquiring connections.", nil, nil),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.conns
	ch <- c.maxConns
	ch <- c.acquires
	ch <- c.emptyAcquire
	ch <- c.acquireWait
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stat()
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(s.AcquiredConns()), "acquired")
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(s.IdleConns()), "idle")
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(s.ConstructingConns()), "constructing")
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquire, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireWait, prometheus.CounterValue, s.AcquireDuration().Seconds())
}
