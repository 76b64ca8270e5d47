// Package marketdata supplies spot prices and volatilities for tokens.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dlom"
	"github.com/matthewwoop/tokenvesting-mvp/pkg/metrics"
)

// Provider is a source of token market data.
type Provider interface {
	// SpotPriceUSD returns the current USD price of symbol.
	SpotPriceUSD(ctx context.Context, symbol string) (float64, error)
	// AnnualizedVolatility returns the annualized volatility of symbol as a fraction.
	AnnualizedVolatility(ctx context.Context, symbol string) (float64, error)
}

// Snapshot reads spot and volatility once each and pairs them with the
// configured risk-free rate. The snapshot is not validated here; the
// engine does that.
func Snapshot(ctx context.Context, p Provider, symbol string, riskFreeRate float64) (dlom.MarketSnapshot, error) {
	spot, err := p.SpotPriceUSD(ctx, symbol)
	if err != nil {
		recordError(symbol, err)
		return dlom.MarketSnapshot{}, fmt.Errorf("spot price for %s: %w", symbol, err)
	}
	vol, err := p.AnnualizedVolatility(ctx, symbol)
	if err != nil {
		recordError(symbol, err)
		return dlom.MarketSnapshot{}, fmt.Errorf("volatility for %s: %w", symbol, err)
	}
	return dlom.MarketSnapshot{Spot: spot, Volatility: vol, RiskFreeRate: riskFreeRate}, nil
}

func recordError(symbol string, err error) {
	kind := "other"
	switch {
	case errors.Is(err, ErrUnsupportedSymbol):
		kind = "unsupported_symbol"
	case errors.Is(err, ErrInsufficientHistory):
		kind = "insufficient_history"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = "context"
	}
	metrics.RecordMarketDataError(strings.ToUpper(symbol), kind)
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
