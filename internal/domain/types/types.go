// Package types contains the JSON shapes exchanged over the API.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dlom"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/model"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// dateOnly is accepted alongside RFC3339 for form-style input.
const dateOnly = "2006-01-02"

// ParseDate accepts RFC3339 timestamps or plain YYYY-MM-DD dates (UTC).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// CreateScheduleRequest is the body of POST /api/vesting-schedules.
type CreateScheduleRequest struct {
	Name          string           `json:"name" yaml:"name"`
	TotalQuantity decimal.Decimal  `json:"totalQuantity" yaml:"totalQuantity"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice,omitempty" yaml:"purchasePrice,omitempty"`
	PurchaseDate  *string          `json:"purchaseDate,omitempty" yaml:"purchaseDate,omitempty"`
}

// CreateUnlockEventRequest is the body of POST .../unlock-events.
type CreateUnlockEventRequest struct {
	UnlockDate string          `json:"unlockDate" yaml:"unlockDate"`
	Amount     decimal.Decimal `json:"amount" yaml:"amount"`
	Frequency  string          `json:"frequency" yaml:"frequency"`
}

// ScheduleResponse is a vesting schedule with its related records.
type ScheduleResponse struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	TotalQuantity    decimal.Decimal       `json:"totalQuantity"`
	PurchasePrice    *decimal.Decimal      `json:"purchasePrice,omitempty"`
	PurchaseDate     *time.Time            `json:"purchaseDate,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UnlockEvents     []UnlockEventResponse `json:"unlockEvents,omitempty"`
	DlomCalculations []CalculationResponse `json:"dlomCalculations,omitempty"`
}

// UnlockEventResponse is one stored unlock tranche.
type UnlockEventResponse struct {
	ID                string          `json:"id"`
	VestingScheduleID string          `json:"vestingScheduleId"`
	UnlockDate        time.Time       `json:"unlockDate"`
	Amount            decimal.Decimal `json:"amount"`
	Frequency         string          `json:"frequency"`
	Position          int             `json:"position"`
}

// EventResult is the wire form of one priced unlock.
type EventResult struct {
	Date         string          `json:"date"`
	UnlockAmount float64         `json:"unlockAmount"`
	Premium      float64         `json:"premium"`
	Discount     float64         `json:"discount"`
	Greeks       *pricing.Greeks `json:"greeks,omitempty"`
}

// ResultPayload is the wire form of a DLOM result. ResultsJSON and
// PerEvent carry the same array.
type ResultPayload struct {
	TotalUnlocked   float64           `json:"totalUnlocked"`
	TotalLocked     float64           `json:"totalLocked"`
	DiscountPercent float64           `json:"discountPercent"`
	DiscountedValue float64           `json:"discountedValue"`
	ResultsJSON     []EventResult     `json:"resultsJson"`
	PerEvent        []EventResult     `json:"perEvent"`
	Alternatives    dlom.Alternatives `json:"alternatives"`
}

// CalculationResponse is a stored calculation.
type CalculationResponse struct {
	ID                string    `json:"id"`
	VestingScheduleID string    `json:"vestingScheduleId"`
	AsOf              time.Time `json:"asOf"`
	RunAt             time.Time `json:"runAt"`
	Symbol            string    `json:"symbol"`
	Spot              float64   `json:"spot"`
	Volatility        float64   `json:"volatility"`
	RiskFreeRate      float64   `json:"riskFreeRate"`
	ResultPayload
}

// AcceptedResponse acknowledges an asynchronous calculation.
type AcceptedResponse struct {
	Status            string `json:"status"`
	VestingScheduleID string `json:"vestingScheduleId"`
}

// FromResult converts an engine result to its wire form.
func FromResult(r dlom.Result) ResultPayload {
	events := make([]EventResult, len(r.PerEvent))
	for i, ev := range r.PerEvent {
		events[i] = EventResult{
			Date:         ev.Date.UTC().Format(time.RFC3339),
			UnlockAmount: ev.UnlockAmount,
			Premium:      ev.Premium,
			Discount:     ev.Discount,
			Greeks:       ev.Greeks,
		}
	}
	return ResultPayload{
		TotalUnlocked:   r.TotalUnlocked,
		TotalLocked:     r.TotalLocked,
		DiscountPercent: r.DiscountPercent,
		DiscountedValue: r.DiscountedValue,
		ResultsJSON:     events,
		PerEvent:        events,
		Alternatives:    r.Alternatives,
	}
}

// FromCalculation converts a stored calculation.
func FromCalculation(c *model.Calculation) CalculationResponse {
	return CalculationResponse{
		ID:                c.ID.String(),
		VestingScheduleID: c.ScheduleID.String(),
		AsOf:              c.AsOf.UTC(),
		RunAt:             c.RunAt.UTC(),
		Symbol:            c.Symbol,
		Spot:              c.Market.Spot,
		Volatility:        c.Market.Volatility,
		RiskFreeRate:      c.Market.RiskFreeRate,
		ResultPayload:     FromResult(c.Result),
	}
}

// FromUnlockEvent converts a stored unlock event.
func FromUnlockEvent(ev *model.UnlockEvent) UnlockEventResponse {
	return UnlockEventResponse{
		ID:                ev.ID.String(),
		VestingScheduleID: ev.ScheduleID.String(),
		UnlockDate:        ev.UnlockDate.UTC(),
		Amount:            ev.Amount,
		Frequency:         string(ev.Frequency),
		Position:          ev.Position,
	}
}

// FromSchedule converts a schedule and, when given, its calculations.
func FromSchedule(s *model.VestingSchedule, calcs []model.Calculation) ScheduleResponse {
	resp := ScheduleResponse{
		ID:            s.ID.String(),
		Name:          s.Name,
		TotalQuantity: s.TotalQuantity,
		PurchasePrice: s.PurchasePrice,
		PurchaseDate:  s.PurchaseDate,
		CreatedAt:     s.CreatedAt.UTC(),
	}
	for i := range s.UnlockEvents {
		resp.UnlockEvents = append(resp.UnlockEvents, FromUnlockEvent(&s.UnlockEvents[i]))
	}
	for i := range calcs {
		resp.DlomCalculations = append(resp.DlomCalculations, FromCalculation(&calcs[i]))
	}
	return resp
}
