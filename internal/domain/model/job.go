package model

import (
	"time"

	"github.com/google/uuid"
)

// CalculationJob asks for a DLOM calculation to run in the background.
type CalculationJob struct {
	ScheduleID uuid.UUID
	// AsOf is nil for "now at execution time".
	AsOf        *time.Time
	RequestedAt time.Time
	// RequestID correlates the job with the HTTP request that created it.
	RequestID string
}
