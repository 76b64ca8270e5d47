// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dlom"
	"github.com/shopspring/decimal"
)

// Frequency describes how an unlock tranche is released.
type Frequency string

// Supported unlock frequencies.
const (
	FrequencyCliff   Frequency = "cliff"
	FrequencyDaily   Frequency = "daily"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency parses a case-insensitive frequency name.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FrequencyCliff, FrequencyDaily, FrequencyMonthly:
		return f, nil
	}
	return "", fmt.Errorf("unknown unlock frequency %q", s)
}

// VestingSchedule is a locked token position and its unlock tranches.
type VestingSchedule struct {
	ID            uuid.UUID
	Name          string
	TotalQuantity decimal.Decimal
	PurchasePrice *decimal.Decimal
	PurchaseDate  *time.Time
	CreatedAt     time.Time
	// UnlockEvents are kept in Position order.
	UnlockEvents []UnlockEvent
}

// UnlockEvent is one tranche of a schedule.
type UnlockEvent struct {
	ID         uuid.UUID
	ScheduleID uuid.UUID
	UnlockDate time.Time
	Amount     decimal.Decimal
	Frequency  Frequency
	// Position is the insertion order within the schedule and the order
	// in which events are priced.
	Position  int
	CreatedAt time.Time
}

// EngineSchedule converts the schedule into the engine's float view.
func (s *VestingSchedule) EngineSchedule() dlom.Schedule {
	events := make([]dlom.UnlockEvent, len(s.UnlockEvents))
	for i, ev := range s.UnlockEvents {
		events[i] = dlom.UnlockEvent{
			UnlockDate: ev.UnlockDate,
			Amount:     ev.Amount.InexactFloat64(),
		}
	}
	return dlom.Schedule{
		TotalQuantity: s.TotalQuantity.InexactFloat64(),
		UnlockEvents:  events,
	}
}

// Calculation is a persisted DLOM valuation. It is never modified after
// it is stored.
type Calculation struct {
	ID         uuid.UUID
	ScheduleID uuid.UUID
	AsOf       time.Time
	RunAt      time.Time
	Symbol     string
	Market     dlom.MarketSnapshot
	Result     dlom.Result
}
