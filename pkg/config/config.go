// Package config loads runtime settings from the environment, with an
// optional .env or config.env file in the working directory.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Lock backends.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Config holds the ledger's settings.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Ledger  LedgerConfig
	Lock    LockConfig
	Metrics MetricsConfig
	Worker  WorkerConfig
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Env      string // development, staging, production
	LogLevel string
}

// Development reports whether logs should be human-readable.
func (c AppConfig) Development() bool {
	return c.Env == "development"
}

// DBConfig holds the PostgreSQL connection.
type DBConfig struct {
	DatabaseURL     string
	ApplicationName string
}

// LedgerConfig holds engine settings.
type LedgerConfig struct {
	// Timezone names the zone calendar days are cut in (IANA name).
	Timezone          string
	NumeratorStrategy string
}

// Location loads Timezone.
func (c LedgerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load LEDGER_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LockConfig selects the per-item lock implementation.
type LockConfig struct {
	Backend      string
	RedisAddress string
	TTL          time.Duration
}

// MetricsConfig holds the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string
}

// WorkerConfig drives the reconciliation worker.
type WorkerConfig struct {
	// Interval between reconciliation sweeps.
	Interval time.Duration
	// AutoRepair rewrites drifted snapshots instead of only reporting them.
	AutoRepair bool
}

// Load reads the configuration. Environment variables win over file values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // optional

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL:     getString(v, "DATABASE_URL", ""),
			ApplicationName: getString(v, "DB_APPLICATION_NAME", "storeledger"),
		},
		Ledger: LedgerConfig{
			Timezone:          getString(v, "LEDGER_TIMEZONE", "UTC"),
			NumeratorStrategy: strings.ToLower(getString(v, "NUMERATOR_STRATEGY", "strict")),
		},
		Lock: LockConfig{
			Backend:      strings.ToLower(getString(v, "LOCK_BACKEND", LockBackendLocal)),
			RedisAddress: getString(v, "REDIS_ADDRESS", "localhost:6379"),
			TTL:          getDuration(v, "LOCK_TTL", 30*time.Second),
		},
		Metrics: MetricsConfig{
			Addr: getString(v, "METRICS_ADDR", ""),
		},
		Worker: WorkerConfig{
			Interval:   getDuration(v, "RECONCILE_INTERVAL", time.Hour),
			AutoRepair: getBool(v, "RECONCILE_AUTO_REPAIR", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := c.Ledger.Location(); err != nil {
		return err
	}
	switch c.Lock.Backend {
	case LockBackendLocal, LockBackendRedis:
	default:
		return fmt.Errorf("LOCK_BACKEND must be %q or %q, got %q", LockBackendLocal, LockBackendRedis, c.Lock.Backend)
	}
	if c.Lock.TTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.Worker.Interval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	switch c.Ledger.NumeratorStrategy {
	case "strict", "cached":
	default:
		return fmt.Errorf("NUMERATOR_STRATEGY must be strict or cached, got %q", c.Ledger.NumeratorStrategy)
	}
	return nil
}

// RequireDatabase fails when no DATABASE_URL is set.
func (c *Config) RequireDatabase() error {
	if c.DB.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return def
	}
	return b
}

// getDuration accepts Go durations ("45s") and plain seconds ("45").
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	s := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
