package loadgen

import (
	"fmt"
	"math"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/types"
)

// tolerance for float comparisons of values derived from the same inputs.
const tolerance = 1e-9

func closeTo(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// Verify checks a calculation returned for plan against the relations the
// engine guarantees.
func Verify(plan Plan, calc types.CalculationResponse) error {
	if len(calc.PerEvent) != len(plan.Events) {
		return fmt.Errorf("%w: %d per-event results for %d unlock events", ErrVerification, len(calc.PerEvent), len(plan.Events))
	}
	if len(calc.ResultsJSON) != len(calc.PerEvent) {
		return fmt.Errorf("%w: resultsJson and perEvent differ in length", ErrVerification)
	}

	totalUnlocked := 0.0
	for i, ev := range plan.Events {
		got := calc.PerEvent[i]
		want, err := types.ParseDate(ev.UnlockDate)
		if err != nil {
			return fmt.Errorf("%w: plan event %d: %v", ErrVerification, i, err)
		}
		date, err := time.Parse(time.RFC3339, got.Date)
		if err != nil || !date.Equal(want) {
			return fmt.Errorf("%w: event %d date %q, want %s", ErrVerification, i, got.Date, want.Format(time.RFC3339))
		}
		amount := ev.Amount.InexactFloat64()
		if !closeTo(got.UnlockAmount, amount) {
			return fmt.Errorf("%w: event %d amount %v, want %v", ErrVerification, i, got.UnlockAmount, amount)
		}
		if got.Discount < 0 || got.Discount > 1 {
			return fmt.Errorf("%w: event %d discount %v outside [0,1]", ErrVerification, i, got.Discount)
		}
		totalUnlocked += amount
	}

	if !closeTo(calc.TotalUnlocked, totalUnlocked) {
		return fmt.Errorf("%w: totalUnlocked %v, want %v", ErrVerification, calc.TotalUnlocked, totalUnlocked)
	}
	total := plan.Schedule.TotalQuantity.InexactFloat64()
	if !closeTo(calc.TotalLocked, total-calc.TotalUnlocked) {
		return fmt.Errorf("%w: totalLocked %v, want %v", ErrVerification, calc.TotalLocked, total-calc.TotalUnlocked)
	}

	lastDiscount := 0.0
	if n := len(calc.PerEvent); n > 0 {
		lastDiscount = calc.PerEvent[n-1].Discount
	}
	if !closeTo(calc.DiscountPercent, lastDiscount*100) {
		return fmt.Errorf("%w: discountPercent %v, want %v", ErrVerification, calc.DiscountPercent, lastDiscount*100)
	}
	return nil
}
