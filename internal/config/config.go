// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Market data sources.
const (
	MarketDataStub    = "stub"
	MarketDataHistory = "history"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Symbol is the token every schedule is valued in.
	Symbol string `koanf:"symbol"`
	// RiskFreeRate is the annual continuously compounded rate.
	RiskFreeRate float64 `koanf:"risk_free_rate"`
	// MarketData selects the provider: stub or history.
	MarketData string `koanf:"market_data"`
	// HistoryFile is the symbol,date,close CSV read by the history provider.
	HistoryFile string `koanf:"history_file"`

	// DatabaseURL selects PostgreSQL storage when set; memory otherwise.
	DatabaseURL string `koanf:"database_url"`

	// WorkerCount sets the number of background calculation workers.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds the background calculation queue.
	QueueSize int `koanf:"queue_size"`
	// DedupeSize bounds the remembered idempotency keys.
	DedupeSize int `koanf:"dedupe_size"`
	// JobTimeout bounds a single background calculation.
	JobTimeout time.Duration `koanf:"job_timeout"`

	// EngineParallelism prices events concurrently when > 1.
	EngineParallelism int `koanf:"engine_parallelism"`
	// EngineGreeks attaches put Greeks to every priced event.
	EngineGreeks bool `koanf:"engine_greeks"`

	// JWTSecret enables bearer auth when non-empty.
	JWTSecret string `koanf:"jwt_secret"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":8080",
		Symbol:            "SOL",
		RiskFreeRate:      0.03,
		MarketData:        MarketDataStub,
		WorkerCount:       runtime.NumCPU(),
		QueueSize:         1024,
		DedupeSize:        50_000,
		JobTimeout:        30 * time.Second,
		EngineParallelism: 1,
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.Symbol) == "":
		return fmt.Errorf("%w: symbol must not be empty", ErrInvalidConfig)
	case c.MarketData != MarketDataStub && c.MarketData != MarketDataHistory:
		return fmt.Errorf("%w: market_data must be %q or %q, got %q", ErrInvalidConfig, MarketDataStub, MarketDataHistory, c.MarketData)
	case c.MarketData == MarketDataHistory && c.HistoryFile == "":
		return fmt.Errorf("%w: history_file is required for market_data=history", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.EngineParallelism < 1:
		return fmt.Errorf("%w: engine_parallelism must be at least 1", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	return nil
}
