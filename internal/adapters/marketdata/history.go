package marketdata

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
)

// Crypto markets trade every calendar day.
const tradingDaysPerYear = 365

type closeRow struct {
	Symbol string  `csv:"symbol"`
	Date   string  `csv:"date"`
	Close  float64 `csv:"close"`
}

type dailyClose struct {
	date  time.Time
	close float64
}

type series struct {
	spot float64
	vol  float64
	err  error
}

// HistoryProvider derives spot and realized volatility from daily closes.
// Everything is computed at load time; lookups never touch the source again.
type HistoryProvider struct {
	series map[string]series
}

// LoadHistoryFile reads a symbol,date,close CSV file.
func LoadHistoryFile(path string) (*HistoryProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price history: %w", err)
	}
	defer f.Close()
	return NewHistoryProvider(f)
}

// NewHistoryProvider parses a symbol,date,close CSV stream. Dates are
// YYYY-MM-DD and closes must be positive.
func NewHistoryProvider(r io.Reader) (*HistoryProvider, error) {
	var rows []closeRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHistory, err)
	}

	bySymbol := make(map[string][]dailyClose)
	for i, row := range rows {
		date, err := time.Parse(time.DateOnly, row.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrInvalidHistory, i+1, err)
		}
		if row.Close <= 0 || math.IsNaN(row.Close) || math.IsInf(row.Close, 0) {
			return nil, fmt.Errorf("%w: row %d: close must be positive, got %v", ErrInvalidHistory, i+1, row.Close)
		}
		sym := normalize(row.Symbol)
		bySymbol[sym] = append(bySymbol[sym], dailyClose{date: date, close: row.Close})
	}

	p := &HistoryProvider{series: make(map[string]series, len(bySymbol))}
	for sym, closes := range bySymbol {
		p.series[sym] = buildSeries(closes)
	}
	return p, nil
}

func buildSeries(closes []dailyClose) series {
	sort.Slice(closes, func(i, j int) bool { return closes[i].date.Before(closes[j].date) })

	s := series{spot: closes[len(closes)-1].close}
	if len(closes) < 3 {
		s.err = fmt.Errorf("%d closes: %w", len(closes), ErrInsufficientHistory)
		return s
	}

	returns := make(stats.Float64Data, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns = append(returns, math.Log(closes[i].close/closes[i-1].close))
	}
	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil {
		s.err = fmt.Errorf("%w: %w", ErrInsufficientHistory, err)
		return s
	}
	s.vol = stdev * math.Sqrt(tradingDaysPerYear)
	return s
}

// Symbols lists the loaded tickers in sorted order.
func (p *HistoryProvider) Symbols() []string {
	out := make([]string, 0, len(p.series))
	for sym := range p.series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// SpotPriceUSD implements Provider with the latest close.
func (p *HistoryProvider) SpotPriceUSD(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s, ok := p.series[normalize(symbol)]
	if !ok {
		return 0, fmt.Errorf("no price history for %q: %w", symbol, ErrUnsupportedSymbol)
	}
	return s.spot, nil
}

// AnnualizedVolatility implements Provider with realized volatility of
// daily log returns.
func (p *HistoryProvider) AnnualizedVolatility(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s, ok := p.series[normalize(symbol)]
	if !ok {
		return 0, fmt.Errorf("no price history for %q: %w", symbol, ErrUnsupportedSymbol)
	}
	if s.err != nil {
		return 0, fmt.Errorf("volatility for %q: %w", symbol, s.err)
	}
	return s.vol, nil
}
