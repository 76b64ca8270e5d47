package loadgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/model"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/types"
	"github.com/shopspring/decimal"
)

// Ranges for generated schedules.
const (
	minQuantity      = 10_000
	quantityRange    = 990_000
	maxPriceCents    = 50_000
	maxMonthsBetween = 6
)

var frequencies = []model.Frequency{model.FrequencyCliff, model.FrequencyMonthly, model.FrequencyDaily}

// randInt returns a uniform integer in [0, n) using crypto/rand.
func randInt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

// GeneratePlans builds n schedules with events unlock events each. Unlock
// dates strictly increase after start and amounts never exceed the total.
func GeneratePlans(n, events int, start time.Time) []Plan {
	plans := make([]Plan, n)
	for i := range plans {
		plans[i] = generatePlan(i, events, start)
	}
	return plans
}

func generatePlan(index, events int, start time.Time) Plan {
	total := minQuantity + randInt(quantityRange)
	price := decimal.New(randInt(maxPriceCents)+1, -2)
	purchase := start.AddDate(0, -int(randInt(12))-1, 0).Format("2006-01-02")

	// Keep a locked remainder so totalLocked stays positive.
	perEvent := total / int64(events+1)
	if perEvent < 1 {
		perEvent = 1
	}

	reqs := make([]types.CreateUnlockEventRequest, events)
	date := start
	for i := range reqs {
		date = date.AddDate(0, int(randInt(maxMonthsBetween))+1, 0)
		amount := perEvent/2 + randInt(perEvent/2+1)
		if amount < 1 {
			amount = 1
		}
		reqs[i] = types.CreateUnlockEventRequest{
			UnlockDate: date.Format("2006-01-02"),
			Amount:     decimal.NewFromInt(amount),
			Frequency:  string(frequencies[randInt(int64(len(frequencies)))]),
		}
	}

	return Plan{
		Schedule: types.CreateScheduleRequest{
			Name:          fmt.Sprintf("loadgen-%d-%d", index, time.Now().Unix()),
			TotalQuantity: decimal.NewFromInt(total),
			PurchasePrice: &price,
			PurchaseDate:  &purchase,
		},
		Events: reqs,
	}
}
