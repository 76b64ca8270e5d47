package marketdata

import (
	"context"
	"fmt"
)

type quote struct {
	spot float64
	vol  float64
}

// StubProvider serves fixed quotes. Only SOL is known.
type StubProvider struct {
	quotes map[string]quote
}

// NewStubProvider returns the fixed-quote provider.
func NewStubProvider() *StubProvider {
	return &StubProvider{quotes: map[string]quote{
		"SOL": {spot: 150, vol: 0.87},
	}}
}

// SpotPriceUSD implements Provider.
func (p *StubProvider) SpotPriceUSD(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q, ok := p.quotes[normalize(symbol)]
	if !ok {
		return 0, fmt.Errorf("no spot price stub for %q: %w", symbol, ErrUnsupportedSymbol)
	}
	return q.spot, nil
}

// AnnualizedVolatility implements Provider.
func (p *StubProvider) AnnualizedVolatility(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q, ok := p.quotes[normalize(symbol)]
	if !ok {
		return 0, fmt.Errorf("no volatility stub for %q: %w", symbol, ErrUnsupportedSymbol)
	}
	return q.vol, nil
}
