package pricing

import (
	"fmt"
	"math"
)

const (
	daysPerYear = 365.0
	percentUnit = 100.0
)

// Greeks holds first-order sensitivities of a put premium.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	// Vega is per 1 volatility point.
	Vega float64 `json:"vega"`
	// Theta is per calendar day.
	Theta float64 `json:"theta"`
	// Rho is per 1 rate point.
	Rho float64 `json:"rho"`
}

// PutGreeks returns the Greeks of a European put. Preconditions match
// BlackScholesPut. An expired option only keeps its delta.
func PutGreeks(s, k, r, sigma, t float64) (Greeks, error) {
	if err := validate(s, k, r, sigma, t); err != nil {
		return Greeks{}, err
	}
	if t <= 0 {
		if k > s {
			return Greeks{Delta: -1}, nil
		}
		return Greeks{}, nil
	}
	if sigma == 0 {
		return Greeks{}, fmt.Errorf("zero volatility with positive time to expiry %.6f: %w", t, ErrInvalidInput)
	}

	sqrtT := math.Sqrt(t)
	d1, d2 := D1D2(s, k, r, sigma, t)
	pdf := NormalPDF(d1)
	discount := math.Exp(-r * t)

	return Greeks{
		Delta: NormalCDF(d1) - 1,
		Gamma: pdf / (s * sigma * sqrtT),
		Vega:  s * pdf * sqrtT / percentUnit,
		Theta: (-s*pdf*sigma/(2*sqrtT) + r*k*discount*NormalCDF(-d2)) / daysPerYear,
		Rho:   -k * t * discount * NormalCDF(-d2) / percentUnit,
	}, nil
}
