package pricing

import (
	"fmt"
	"math"
)

// BlackScholesPut returns the premium of a European put with spot s,
// strike k, risk-free rate r, annualized volatility sigma and time to
// expiry t in years.
//
// t <= 0 returns the intrinsic value max(k-s, 0). A zero sigma with t > 0
// has no Black-Scholes price and is rejected with ErrInvalidInput.
func BlackScholesPut(s, k, r, sigma, t float64) (float64, error) {
	if err := validate(s, k, r, sigma, t); err != nil {
		return 0, err
	}
	if t <= 0 {
		return math.Max(k-s, 0), nil
	}
	if sigma == 0 {
		return 0, fmt.Errorf("zero volatility with positive time to expiry %.6f: %w", t, ErrInvalidInput)
	}

	d1, d2 := D1D2(s, k, r, sigma, t)
	return k*math.Exp(-r*t)*NormalCDF(-d2) - s*NormalCDF(-d1), nil
}

// D1D2 returns the Black-Scholes d1 and d2 terms. Callers must ensure
// sigma > 0 and t > 0.
func D1D2(s, k, r, sigma, t float64) (float64, float64) {
	volSqrtT := sigma * math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / volSqrtT
	return d1, d1 - volSqrtT
}

func validate(s, k, r, sigma, t float64) error {
	for _, v := range [...]float64{s, k, r, sigma, t} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite parameter: %w", ErrInvalidInput)
		}
	}
	switch {
	case s <= 0:
		return fmt.Errorf("spot must be positive, got %v: %w", s, ErrInvalidInput)
	case k <= 0:
		return fmt.Errorf("strike must be positive, got %v: %w", k, ErrInvalidInput)
	case sigma < 0:
		return fmt.Errorf("volatility must be non-negative, got %v: %w", sigma, ErrInvalidInput)
	}
	return nil
}
