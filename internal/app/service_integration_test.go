package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/marketdata"
	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/repository"
	service "github.com/matthewwoop/tokenvesting-mvp/internal/app"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dlom"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/types"
	"github.com/matthewwoop/tokenvesting-mvp/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type fixedProvider struct {
	spot, vol float64
}

func (p fixedProvider) SpotPriceUSD(context.Context, string) (float64, error) { return p.spot, nil }
func (p fixedProvider) AnnualizedVolatility(context.Context, string) (float64, error) {
	return p.vol, nil
}

func newService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	opts = append([]service.Option{
		service.WithLogger(logger.Nop()),
		service.WithStore(repository.NewMemoryStore(context.Background())),
		service.WithClock(func() time.Time { return asOf }),
		service.WithWorkerCount(2),
	}, opts...)
	svc := service.New(opts...)
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return svc
}

func createSchedule(t *testing.T, svc *service.Service, total int64, unlocks ...string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	sched, err := svc.CreateSchedule(ctx, types.CreateScheduleRequest{
		Name:          "seed",
		TotalQuantity: decimal.NewFromInt(total),
	})
	require.NoError(t, err)
	for _, d := range unlocks {
		_, err := svc.AddUnlockEvent(ctx, sched.ID, types.CreateUnlockEventRequest{
			UnlockDate: d,
			Amount:     decimal.NewFromInt(1000),
			Frequency:  "cliff",
		})
		require.NoError(t, err)
	}
	return sched.ID
}

func TestCalculateReferenceSchedule(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	id := createSchedule(t, svc, 1500, "2026-01-01")

	calc, err := svc.Calculate(ctx, id, nil)
	require.NoError(t, err)

	assert.Equal(t, asOf, calc.AsOf)
	assert.Equal(t, "SOL", calc.Symbol)
	assert.Equal(t, dlom.MarketSnapshot{Spot: 150, Volatility: 0.87, RiskFreeRate: 0.03}, calc.Market)
	require.Len(t, calc.Result.PerEvent, 1)
	assert.InDelta(t, 47.53106193709607, calc.Result.PerEvent[0].Premium, 1e-9)
	assert.InDelta(t, 31.687374624730713, calc.Result.DiscountPercent, 1e-9)
	assert.Equal(t, 1000.0, calc.Result.TotalUnlocked)
	assert.Equal(t, 500.0, calc.Result.TotalLocked)

	stored, err := svc.GetCalculation(ctx, id, calc.ID)
	require.NoError(t, err)
	assert.Equal(t, calc.Result, stored.Result)

	sched, calcs, err := svc.GetSchedule(ctx, id)
	require.NoError(t, err)
	assert.Len(t, sched.UnlockEvents, 1)
	assert.Len(t, calcs, 1)
}

func TestCalculateExplicitAsOf(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	id := createSchedule(t, svc, 1000, "2026-01-01")

	later := asOf.AddDate(2, 0, 0)
	calc, err := svc.Calculate(ctx, id, &later)
	require.NoError(t, err)
	assert.Equal(t, later, calc.AsOf)
	assert.Equal(t, 0.0, calc.Result.DiscountPercent)
}

func TestCalculateTruncatesAsOfToMicroseconds(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	id := createSchedule(t, svc, 1000, "2026-01-01")

	at := asOf.Add(1500 * time.Nanosecond)
	calc, err := svc.Calculate(ctx, id, &at)
	require.NoError(t, err)
	assert.Equal(t, asOf.Add(time.Microsecond), calc.AsOf)

	same := asOf.Add(1999 * time.Nanosecond)
	_, err = svc.Calculate(ctx, id, &same)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestCalculateErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown schedule", func(t *testing.T) {
		svc := newService(t)
		_, err := svc.Calculate(ctx, uuid.New(), nil)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("unsupported symbol stores nothing", func(t *testing.T) {
		svc := newService(t, service.WithSymbol("DOGE"))
		id := createSchedule(t, svc, 1000, "2026-01-01")
		_, err := svc.Calculate(ctx, id, nil)
		assert.ErrorIs(t, err, marketdata.ErrUnsupportedSymbol)

		calcs, err := svc.ListCalculations(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, calcs)
	})

	t.Run("zero volatility with a future unlock", func(t *testing.T) {
		svc := newService(t, service.WithMarketData(fixedProvider{spot: 150, vol: 0}))
		id := createSchedule(t, svc, 1000, "2026-01-01")
		_, err := svc.Calculate(ctx, id, nil)
		assert.ErrorIs(t, err, dlom.ErrInvalidInput)
	})

	t.Run("same asOf twice is a duplicate", func(t *testing.T) {
		svc := newService(t)
		id := createSchedule(t, svc, 1000, "2026-01-01")
		_, err := svc.Calculate(ctx, id, nil)
		require.NoError(t, err)
		_, err = svc.Calculate(ctx, id, nil)
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})
}

func TestRequestValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateSchedule(ctx, types.CreateScheduleRequest{Name: " ", TotalQuantity: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)

	_, err = svc.CreateSchedule(ctx, types.CreateScheduleRequest{Name: "x", TotalQuantity: decimal.Zero})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)

	bad := "yesterday"
	_, err = svc.CreateSchedule(ctx, types.CreateScheduleRequest{Name: "x", TotalQuantity: decimal.NewFromInt(1), PurchaseDate: &bad})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)

	id := createSchedule(t, svc, 1000)
	cases := []types.CreateUnlockEventRequest{
		{UnlockDate: "soon", Amount: decimal.NewFromInt(1), Frequency: "cliff"},
		{UnlockDate: "2026-01-01", Amount: decimal.NewFromInt(-1), Frequency: "cliff"},
		{UnlockDate: "2026-01-01", Amount: decimal.NewFromInt(1), Frequency: "weekly"},
	}
	for _, req := range cases {
		_, err := svc.AddUnlockEvent(ctx, id, req)
		assert.ErrorIs(t, err, service.ErrInvalidRequest)
	}

	ev, err := svc.AddUnlockEvent(ctx, id, types.CreateUnlockEventRequest{
		UnlockDate: "2026-01-01", Amount: decimal.Zero, Frequency: "cliff",
	})
	require.NoError(t, err)
	assert.True(t, ev.Amount.IsZero())

	_, err = svc.AddUnlockEvent(ctx, uuid.New(), types.CreateUnlockEventRequest{
		UnlockDate: "2026-01-01", Amount: decimal.NewFromInt(1), Frequency: "daily",
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEnqueueCalculation(t *testing.T) {
	ctx := context.Background()

	t.Run("not started", func(t *testing.T) {
		svc := newService(t)
		id := createSchedule(t, svc, 1000, "2026-01-01")
		err := svc.EnqueueCalculation(ctx, id, nil, "req-1")
		assert.ErrorIs(t, err, service.ErrNotStarted)
	})

	t.Run("processed in the background", func(t *testing.T) {
		svc := newService(t)
		require.NoError(t, svc.Start(ctx))
		id := createSchedule(t, svc, 1500, "2026-01-01", "2025-07-02")

		require.NoError(t, svc.EnqueueCalculation(ctx, id, nil, "req-2"))
		assert.Eventually(t, func() bool {
			calcs, err := svc.ListCalculations(ctx, id)
			return err == nil && len(calcs) == 1
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("unknown schedule is rejected up front", func(t *testing.T) {
		svc := newService(t)
		require.NoError(t, svc.Start(ctx))
		err := svc.EnqueueCalculation(ctx, uuid.New(), nil, "req-3")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("full queue reports busy", func(t *testing.T) {
		blocked := make(chan struct{})
		svc := newService(t,
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
			service.WithMarketData(blockingProvider{release: blocked}),
		)
		require.NoError(t, svc.Start(ctx))
		id := createSchedule(t, svc, 1000, "2026-01-01")

		var busy error
		for i := 0; i < 10 && busy == nil; i++ {
			at := asOf.Add(time.Duration(i) * time.Hour)
			busy = svc.EnqueueCalculation(ctx, id, &at, "req")
		}
		close(blocked)
		assert.True(t, errors.Is(busy, service.ErrBusy))
	})
}

type blockingProvider struct {
	release chan struct{}
}

func (p blockingProvider) SpotPriceUSD(ctx context.Context, _ string) (float64, error) {
	select {
	case <-p.release:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return 150, nil
}

func (p blockingProvider) AnnualizedVolatility(context.Context, string) (float64, error) {
	return 0.87, nil
}
