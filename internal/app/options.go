package service

import (
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/marketdata"
	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/repository"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dlom"
	"github.com/matthewwoop/tokenvesting-mvp/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the schedule store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithMarketData sets the market data provider.
func WithMarketData(p marketdata.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.market = p
		}
	}
}

// WithSymbol sets the token symbol schedules are valued in.
func WithSymbol(symbol string) Option {
	return func(s *Service) {
		if symbol != "" {
			s.symbol = symbol
		}
	}
}

// WithRiskFreeRate sets the annual risk-free rate.
func WithRiskFreeRate(rate float64) Option {
	return func(s *Service) {
		s.riskFreeRate = rate
	}
}

// WithEngine sets the DLOM engine.
func WithEngine(e *dlom.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithWorkerCount sets the number of background workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the calculation queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithJobTimeout bounds one background calculation.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now, used for asOf and runAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
