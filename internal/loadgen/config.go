// Package loadgen drives a running DLOM service over HTTP: it creates
// random vesting schedules, prices them concurrently and checks every
// result for internal consistency.
package loadgen

import (
	"runtime"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/types"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Schedules int           // Number of schedules to create
	Events    int           // Unlock events per schedule
	Workers   int           // Number of concurrent workers
	Timeout   time.Duration // HTTP request timeout
	Token     string        // Bearer token, empty when auth is disabled
	AsOf      string        // Valuation date sent with every calculation
	Verbose   bool
}

// DefaultConfig returns the settings used when flags are left alone.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:9080",
		Schedules: 100,
		Events:    4,
		Workers:   runtime.NumCPU() * 2,
		Timeout:   30 * time.Second,
		AsOf:      "2025-01-01",
	}
}

// Plan is one schedule and the unlock events posted for it, in order.
type Plan struct {
	Schedule types.CreateScheduleRequest
	Events   []types.CreateUnlockEventRequest
}

// Stats holds run statistics.
type Stats struct {
	SchedulesPlanned   int
	SchedulesCreated   int
	EventsPosted       int
	EventsDuplicate    int
	CalculationsOK     int
	CalculationsFailed int
	VerificationErrors int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
