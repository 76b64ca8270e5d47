package dlom

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

func alternatives(perEvent []UnlockPricingResult) (Alternatives, error) {
	alts := Alternatives{OrderedChronologically: true}
	if len(perEvent) == 0 {
		return alts, nil
	}

	discounts := make(stats.Float64Data, len(perEvent))
	weighted, amount := 0.0, 0.0
	latest := 0
	for i, ev := range perEvent {
		discounts[i] = ev.Discount
		weighted += ev.UnlockAmount * ev.Discount
		amount += ev.UnlockAmount

		if i > 0 && ev.Date.Before(perEvent[i-1].Date) {
			alts.OrderedChronologically = false
		}
		// ties go to the later position
		if !ev.Date.Before(perEvent[latest].Date) {
			latest = i
		}
	}

	mean, err := stats.Mean(discounts)
	if err != nil {
		return Alternatives{}, fmt.Errorf("%w: mean: %w", errAggregation, err)
	}
	maxDiscount, err := stats.Max(discounts)
	if err != nil {
		return Alternatives{}, fmt.Errorf("%w: max: %w", errAggregation, err)
	}

	if amount != 0 {
		alts.AmountWeightedDiscountPercent = weighted / amount * percent
	}
	alts.ChronologicalLastDiscountPercent = perEvent[latest].Discount * percent
	alts.MeanDiscountPercent = mean * percent
	alts.MaxDiscountPercent = maxDiscount * percent
	return alts, nil
}
