// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/export"
	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/marketdata"
	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/repository"
	service "github.com/matthewwoop/tokenvesting-mvp/internal/app"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dlom"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/model"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// IdempotencyHeader carries the client's idempotency key on writes.
const IdempotencyHeader = "Idempotency-Key"

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ScheduleDependencies
	CalculationDependencies
	Idempotency
}

// ScheduleDependencies covers schedule and unlock event operations.
type ScheduleDependencies interface {
	CreateSchedule(ctx context.Context, req types.CreateScheduleRequest) (*model.VestingSchedule, error)
	ListSchedules(ctx context.Context) ([]model.VestingSchedule, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*model.VestingSchedule, []model.Calculation, error)
	AddUnlockEvent(ctx context.Context, scheduleID uuid.UUID, req types.CreateUnlockEventRequest) (*model.UnlockEvent, error)
}

// CalculationDependencies covers DLOM calculations.
type CalculationDependencies interface {
	Calculate(ctx context.Context, scheduleID uuid.UUID, asOf *time.Time) (*model.Calculation, error)
	// EnqueueCalculation returns service.ErrBusy on backpressure.
	EnqueueCalculation(ctx context.Context, scheduleID uuid.UUID, asOf *time.Time, requestID string) error
	GetCalculation(ctx context.Context, scheduleID, calcID uuid.UUID) (*model.Calculation, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*model.VestingSchedule, []model.Calculation, error)
}

// Idempotency tracks Idempotency-Key headers.
type Idempotency interface {
	SeenAndRecord(ctx context.Context, key string) bool
	Complete(ctx context.Context, key, ref string)
	Lookup(ctx context.Context, key string) (string, bool)
	Unrecord(ctx context.Context, key string)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	scheduleHandler    *ScheduleHandler
	calculationHandler *CalculationHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		scheduleHandler:    NewScheduleHandler(deps, deps),
		calculationHandler: NewCalculationHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /api/vesting-schedules", MetricsMiddleware(s.scheduleHandler.HandleList, "list_schedules"))
	mux.HandleFunc("POST /api/vesting-schedules", MetricsMiddleware(s.scheduleHandler.HandleCreate, "create_schedule"))
	mux.HandleFunc("GET /api/vesting-schedules/{id}", MetricsMiddleware(s.scheduleHandler.HandleGet, "get_schedule"))
	mux.HandleFunc("POST /api/vesting-schedules/{id}/unlock-events", MetricsMiddleware(s.scheduleHandler.HandleAddUnlockEvent, "add_unlock_event"))

	mux.HandleFunc("POST /api/vesting-schedules/{id}/calculate", MetricsMiddleware(s.calculationHandler.HandleCalculate, "calculate"))
	mux.HandleFunc("GET /api/vesting-schedules/{id}/calculations/{calcId}", MetricsMiddleware(s.calculationHandler.HandleGet, "get_calculation"))
	mux.HandleFunc("GET /api/vesting-schedules/{id}/calculations/{calcId}/export", MetricsMiddleware(s.calculationHandler.HandleExport, "export_calculation"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	ID        string `json:"id,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps domain and store errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrRelatedNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrDuplicate), errors.Is(err, ErrInFlight):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, dlom.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err)
	case errors.Is(err, marketdata.ErrUnsupportedSymbol):
		writeError(w, http.StatusBadRequest, "unsupported_symbol", err)
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, export.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrBusy), errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func decodeBody(r *http.Request, w http.ResponseWriter, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

// pathID parses a UUID path value. Malformed ids cannot exist, so they
// are reported as not found.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, WrapKind("api.path", repository.ErrNotFound, err)
	}
	return id, nil
}
