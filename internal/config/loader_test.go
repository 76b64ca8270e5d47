package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"DLOM_CONFIG",
	"DLOM_ADDR",
	"DLOM_SYMBOL",
	"DLOM_RISK_FREE_RATE",
	"DLOM_MARKET_DATA",
	"DLOM_HISTORY_FILE",
	"DLOM_QUEUE_SIZE",
	"DLOM_WORKER_COUNT",
	"DLOM_JOB_TIMEOUT",
	"DLOM_ENGINE_PARALLELISM",
	"DLOM_ENGINE_GREEKS",
	"DLOM_JWT_SECRET",
	"DLOM_LOG_FORMAT",
}

func clearConfigEnvVars() {
	for _, name := range configEnvVars {
		_ = os.Unsetenv(name)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Symbol, convey.ShouldEqual, "SOL")
				convey.So(cfg.RiskFreeRate, convey.ShouldEqual, 0.03)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("DLOM_ADDR", ":9090")
			_ = os.Setenv("DLOM_RISK_FREE_RATE", "0.045")
			_ = os.Setenv("DLOM_WORKER_COUNT", "16")
			_ = os.Setenv("DLOM_JOB_TIMEOUT", "5s")
			_ = os.Setenv("DLOM_ENGINE_GREEKS", "true")
			_ = os.Setenv("DLOM_JWT_SECRET", "s3cret")
			_ = os.Setenv("DLOM_MARKET_DATA", " STUB ")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.RiskFreeRate, convey.ShouldEqual, 0.045)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.JobTimeout, convey.ShouldEqual, 5*time.Second)
				convey.So(cfg.EngineGreeks, convey.ShouldBeTrue)
				convey.So(cfg.JWTSecret, convey.ShouldEqual, "s3cret")
				convey.So(cfg.MarketData, convey.ShouldEqual, config.MarketDataStub)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := createTempConfigFile(t, `
addr: ":7070"
symbol: "sol"
market_data: history
history_file: /data/sol.csv
queue_size: 64
engine_parallelism: 4
log_format: json
`)
			_ = os.Setenv("DLOM_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.MarketData, convey.ShouldEqual, config.MarketDataHistory)
				convey.So(cfg.HistoryFile, convey.ShouldEqual, "/data/sol.csv")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.EngineParallelism, convey.ShouldEqual, 4)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})

			convey.Convey("And env vars take precedence over the file", func() {
				_ = os.Setenv("DLOM_ADDR", ":6060")
				_ = os.Setenv("DLOM_QUEUE_SIZE", "8")

				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 8)
				convey.So(cfg.EngineParallelism, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("DLOM_CONFIG", "/non/existent/file.yaml")
			_, err := config.Load(ctx)

			convey.Convey("Then loading fails with ErrLoadConfig", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an env var cannot be parsed", func() {
			_ = os.Setenv("DLOM_QUEUE_SIZE", "lots")
			_, err := config.Load(ctx)

			convey.Convey("Then loading fails with ErrLoadConfig", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the merged config is invalid", func() {
			_ = os.Setenv("DLOM_MARKET_DATA", "history")
			_, err := config.Load(ctx)

			convey.Convey("Then loading fails with ErrInvalidConfig", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
