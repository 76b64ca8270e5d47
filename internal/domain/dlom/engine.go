// Package dlom computes the discount for lack of marketability of a token
// vesting schedule by pricing an at-the-money protective put for every
// unlock event.
package dlom

import (
	"fmt"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/pricing"
	"golang.org/x/sync/errgroup"
)

const (
	secondsPerYear = 365 * 24 * 60 * 60
	percent      = 100.0
)

// Engine is stateless apart from its options and safe for concurrent use.
type Engine struct {
	parallelism int
	greeks      bool
}

// NewEngine creates an engine. The zero configuration prices sequentially.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{parallelism: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute values schedule against market as of asOf.
//
// The headline DiscountPercent and DiscountedValue use the discount of the
// positionally last event. Any pricing failure fails the whole result.
func (e *Engine) Compute(schedule Schedule, market MarketSnapshot, asOf time.Time) (Result, error) {
	if err := market.Validate(); err != nil {
		return Result{}, err
	}

	perEvent, err := e.priceEvents(schedule.UnlockEvents, market, asOf)
	if err != nil {
		return Result{}, err
	}

	totalUnlocked := 0.0
	for _, ev := range schedule.UnlockEvents {
		totalUnlocked += ev.Amount
	}

	lastDiscount := 0.0
	if n := len(perEvent); n > 0 {
		lastDiscount = perEvent[n-1].Discount
	}

	alts, err := alternatives(perEvent)
	if err != nil {
		return Result{}, err
	}

	return Result{
		TotalUnlocked:   totalUnlocked,
		TotalLocked:     schedule.TotalQuantity - totalUnlocked,
		DiscountPercent: lastDiscount * percent,
		DiscountedValue: totalUnlocked * market.Spot * (1 - lastDiscount),
		PerEvent:        perEvent,
		Alternatives:    alts,
	}, nil
}

func (e *Engine) priceEvents(events []UnlockEvent, market MarketSnapshot, asOf time.Time) ([]UnlockPricingResult, error) {
	out := make([]UnlockPricingResult, len(events))

	if e.parallelism <= 1 || len(events) < e.parallelism {
		for i, ev := range events {
			res, err := e.priceEvent(i, ev, market, asOf)
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	}

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, ev := range events {
		g.Go(func() error {
			res, err := e.priceEvent(i, ev, market, asOf)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) priceEvent(idx int, ev UnlockEvent, market MarketSnapshot, asOf time.Time) (UnlockPricingResult, error) {
	t := YearFraction(asOf, ev.UnlockDate)
	s := market.Spot

	premium, err := pricing.BlackScholesPut(s, s, market.RiskFreeRate, market.Volatility, t)
	if err != nil {
		return UnlockPricingResult{}, fmt.Errorf("unlock event %d (%s): %w", idx, ev.UnlockDate.Format(time.RFC3339), err)
	}

	res := UnlockPricingResult{
		Date:         ev.UnlockDate,
		UnlockAmount: ev.Amount,
		Premium:      premium,
		Discount:     premium / s,
	}
	if e.greeks {
		g, err := pricing.PutGreeks(s, s, market.RiskFreeRate, market.Volatility, t)
		if err != nil {
			return UnlockPricingResult{}, fmt.Errorf("unlock event %d greeks: %w", idx, err)
		}
		res.Greeks = &g
	}
	return res, nil
}

// YearFraction returns the time from asOf to unlock in 365-day years,
// floored at zero for unlocks already in the past. The difference is taken
// in seconds so horizons beyond the range of time.Duration stay exact.
func YearFraction(asOf, unlock time.Time) float64 {
	secs := float64(unlock.Unix()-asOf.Unix()) + float64(unlock.Nanosecond()-asOf.Nanosecond())/1e9
	if secs <= 0 {
		return 0
	}
	return secs / secondsPerYear
}
