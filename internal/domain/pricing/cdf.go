// Package pricing implements the closed-form option math used to value
// locked token positions: a fixed-coefficient normal CDF and the
// Black-Scholes European put built on it.
package pricing

import "math"

// Abramowitz-Stegun 26.2.17 constants. Stored calculations are only
// reproducible with these exact values.
const (
	cdfP  = 0.2316419
	pdfC  = 0.3989423
	coef1 = 0.3193815
	coef2 = -0.3565638
	coef3 = 1.781478
	coef4 = -1.821256
	coef5 = 1.330274
)

// NormalPDF returns the standard normal density at x.
func NormalPDF(x float64) float64 {
	return pdfC * math.Exp(-x*x/2)
}

// NormalCDF approximates the standard normal cumulative distribution
// function. Maximum absolute error is about 7.5e-8.
//
// Negative inputs go through N(-x) = 1 - N(x) so both halves share one
// formula. NaN and infinities are not handled.
func NormalCDF(x float64) float64 {
	if x == 0 {
		return 0.5
	}
	if x < 0 {
		return 1 - NormalCDF(-x)
	}
	t := 1 / (1 + cdfP*x)
	poly := coef1 + t*(coef2+t*(coef3+t*(coef4+t*coef5)))
	return 1 - NormalPDF(x)*t*poly
}
