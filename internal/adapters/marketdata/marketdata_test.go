package marketdata_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStubProvider(t *testing.T) {
	ctx := context.Background()
	p := marketdata.NewStubProvider()

	for _, sym := range []string{"SOL", "sol", " Sol "} {
		spot, err := p.SpotPriceUSD(ctx, sym)
		require.NoError(t, err)
		assert.Equal(t, 150.0, spot)

		vol, err := p.AnnualizedVolatility(ctx, sym)
		require.NoError(t, err)
		assert.Equal(t, 0.87, vol)
	}

	_, err := p.SpotPriceUSD(ctx, "DOGE")
	assert.ErrorIs(t, err, marketdata.ErrUnsupportedSymbol)
	_, err = p.AnnualizedVolatility(ctx, "ETH")
	assert.ErrorIs(t, err, marketdata.ErrUnsupportedSymbol)
}

func TestStubProviderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := marketdata.NewStubProvider().SpotPriceUSD(ctx, "SOL")
	assert.ErrorIs(t, err, context.Canceled)
}

const history = `symbol,date,close
sol,2025-01-03,99
SOL,2025-01-01,100
SOL,2025-01-02,110
ETH,2025-01-01,3000
ETH,2025-01-02,3100
`

func TestHistoryProvider(t *testing.T) {
	ctx := context.Background()
	p, err := marketdata.NewHistoryProvider(strings.NewReader(history))
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH", "SOL"}, p.Symbols())

	t.Run("spot is the latest close regardless of row order", func(t *testing.T) {
		spot, err := p.SpotPriceUSD(ctx, "sol")
		require.NoError(t, err)
		assert.Equal(t, 99.0, spot)
	})

	t.Run("volatility annualizes the sample stdev of log returns", func(t *testing.T) {
		r1, r2 := math.Log(110.0/100), math.Log(99.0/110)
		mean := (r1 + r2) / 2
		sd := math.Sqrt((r1-mean)*(r1-mean) + (r2-mean)*(r2-mean))
		vol, err := p.AnnualizedVolatility(ctx, "SOL")
		require.NoError(t, err)
		assert.InDelta(t, sd*math.Sqrt(365), vol, 1e-12)
	})

	t.Run("one return is not enough", func(t *testing.T) {
		spot, err := p.SpotPriceUSD(ctx, "ETH")
		require.NoError(t, err)
		assert.Equal(t, 3100.0, spot)

		_, err = p.AnnualizedVolatility(ctx, "ETH")
		assert.ErrorIs(t, err, marketdata.ErrInsufficientHistory)
	})

	t.Run("unknown symbols are unsupported", func(t *testing.T) {
		_, err := p.AnnualizedVolatility(ctx, "BTC")
		assert.ErrorIs(t, err, marketdata.ErrUnsupportedSymbol)
	})
}

func TestHistoryProviderRejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"bad date":       "symbol,date,close\nSOL,01/02/2025,100\n",
		"negative close": "symbol,date,close\nSOL,2025-01-02,-1\n",
		"bad number":     "symbol,date,close\nSOL,2025-01-02,abc\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := marketdata.NewHistoryProvider(strings.NewReader(body))
			assert.ErrorIs(t, err, marketdata.ErrInvalidHistory)
		})
	}
}

func TestLoadHistoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(history), 0o600))

	p, err := marketdata.LoadHistoryFile(path)
	require.NoError(t, err)
	assert.Len(t, p.Symbols(), 2)

	_, err = marketdata.LoadHistoryFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) SpotPriceUSD(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockProvider) AnnualizedVolatility(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("reads each value exactly once", func(t *testing.T) {
		p := new(mockProvider)
		p.On("SpotPriceUSD", ctx, "SOL").Return(150.0, nil).Once()
		p.On("AnnualizedVolatility", ctx, "SOL").Return(0.87, nil).Once()

		snap, err := marketdata.Snapshot(ctx, p, "SOL", 0.03)
		require.NoError(t, err)
		assert.Equal(t, 150.0, snap.Spot)
		assert.Equal(t, 0.87, snap.Volatility)
		assert.Equal(t, 0.03, snap.RiskFreeRate)
		p.AssertExpectations(t)
	})

	t.Run("propagates unsupported symbol without reading volatility", func(t *testing.T) {
		p := new(mockProvider)
		p.On("SpotPriceUSD", ctx, "DOGE").Return(0.0, marketdata.ErrUnsupportedSymbol)

		_, err := marketdata.Snapshot(ctx, p, "DOGE", 0.03)
		assert.True(t, errors.Is(err, marketdata.ErrUnsupportedSymbol))
		p.AssertNotCalled(t, "AnnualizedVolatility", mock.Anything, mock.Anything)
	})

	t.Run("propagates volatility failures", func(t *testing.T) {
		p := new(mockProvider)
		p.On("SpotPriceUSD", ctx, "ETH").Return(3000.0, nil)
		p.On("AnnualizedVolatility", ctx, "ETH").Return(0.0, marketdata.ErrInsufficientHistory)

		_, err := marketdata.Snapshot(ctx, p, "ETH", 0.03)
		assert.ErrorIs(t, err, marketdata.ErrInsufficientHistory)
	})
}
