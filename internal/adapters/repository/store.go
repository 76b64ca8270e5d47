// Package repository persists vesting schedules, unlock events and
// DLOM calculations.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/model"
)

// Store provides read/write access to schedules and their calculations.
type Store interface {
	// CreateSchedule stores a new schedule. ID and CreatedAt are assigned
	// when zero.
	CreateSchedule(ctx context.Context, s *model.VestingSchedule) error
	// ListSchedules returns every schedule with its events, oldest first.
	ListSchedules(ctx context.Context) ([]model.VestingSchedule, error)
	// GetSchedule returns a schedule with events in Position order.
	// Returns ErrNotFound if the schedule is unknown.
	GetSchedule(ctx context.Context, id uuid.UUID) (*model.VestingSchedule, error)
	// AddUnlockEvent appends an event and assigns its Position.
	// Returns ErrNotFound if the schedule is unknown.
	AddUnlockEvent(ctx context.Context, ev *model.UnlockEvent) error

	// SaveCalculation stores an immutable calculation record.
	// Returns ErrRelatedNotFound if the schedule no longer exists and
	// ErrDuplicate if the schedule already has a calculation for c.AsOf.
	SaveCalculation(ctx context.Context, c *model.Calculation) error
	// ListCalculations returns a schedule's calculations, newest run first.
	ListCalculations(ctx context.Context, scheduleID uuid.UUID) ([]model.Calculation, error)
	// GetCalculation returns ErrNotFound unless calcID belongs to scheduleID.
	GetCalculation(ctx context.Context, scheduleID, calcID uuid.UUID) (*model.Calculation, error)

	// Count returns the number of schedules.
	Count(ctx context.Context) int
	// Close releases background resources.
	Close() error
}
