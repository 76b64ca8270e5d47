package dlom

import (
	"fmt"
	"math"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/pricing"
)

// UnlockEvent is a single future release of tokens.
type UnlockEvent struct {
	UnlockDate time.Time
	Amount     float64
}

// Schedule is the engine's view of a vesting schedule. UnlockEvents are
// priced in the given order; they are never re-sorted.
type Schedule struct {
	TotalQuantity float64
	UnlockEvents  []UnlockEvent
}

// MarketSnapshot is the market state for one calculation.
type MarketSnapshot struct {
	Spot         float64 `json:"spot"`
	Volatility   float64 `json:"volatility"`
	RiskFreeRate float64 `json:"riskFreeRate"`
}

// Validate rejects snapshots that the pricer could never accept.
// Zero volatility is allowed here; it only fails for events that still
// have time to expiry.
func (m MarketSnapshot) Validate() error {
	switch {
	case math.IsNaN(m.Spot) || math.IsInf(m.Spot, 0) || m.Spot <= 0:
		return fmt.Errorf("spot must be positive and finite, got %v: %w", m.Spot, ErrInvalidInput)
	case math.IsNaN(m.Volatility) || math.IsInf(m.Volatility, 0) || m.Volatility < 0:
		return fmt.Errorf("volatility must be non-negative and finite, got %v: %w", m.Volatility, ErrInvalidInput)
	case math.IsNaN(m.RiskFreeRate) || math.IsInf(m.RiskFreeRate, 0):
		return fmt.Errorf("risk-free rate must be finite, got %v: %w", m.RiskFreeRate, ErrInvalidInput)
	}
	return nil
}

// UnlockPricingResult is the priced protective put for one unlock event.
type UnlockPricingResult struct {
	Date         time.Time       `json:"date"`
	UnlockAmount float64         `json:"unlockAmount"`
	Premium      float64         `json:"premium"`
	Discount     float64         `json:"discount"`
	Greeks       *pricing.Greeks `json:"greeks,omitempty"`
}

// Alternatives are aggregations that differ from the canonical
// positional-last discount. They are reported next to it, never instead.
type Alternatives struct {
	AmountWeightedDiscountPercent    float64 `json:"amountWeightedDiscountPercent"`
	ChronologicalLastDiscountPercent float64 `json:"chronologicalLastDiscountPercent"`
	MeanDiscountPercent              float64 `json:"meanDiscountPercent"`
	MaxDiscountPercent               float64 `json:"maxDiscountPercent"`
	OrderedChronologically           bool    `json:"orderedChronologically"`
}

// Result is the schedule-level valuation.
type Result struct {
	TotalUnlocked   float64               `json:"totalUnlocked"`
	TotalLocked     float64               `json:"totalLocked"`
	DiscountPercent float64               `json:"discountPercent"`
	DiscountedValue float64               `json:"discountedValue"`
	PerEvent        []UnlockPricingResult `json:"perEvent"`
	Alternatives    Alternatives          `json:"alternatives"`
}
