package marketdata

import "errors"

var (
	// ErrUnsupportedSymbol is returned for tickers the provider has no data for.
	ErrUnsupportedSymbol = errors.New("unsupported symbol")
	// ErrInsufficientHistory is returned when a symbol has fewer than three
	// closes, i.e. fewer than two daily returns to take a sample deviation of.
	ErrInsufficientHistory = errors.New("insufficient price history")
	// ErrInvalidHistory is returned for malformed history rows.
	ErrInvalidHistory = errors.New("invalid price history")
)
