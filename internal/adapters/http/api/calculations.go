package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/export"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/types"
)

// CalculationHandler handles DLOM calculation requests.
type CalculationHandler struct {
	deps CalculationDependencies
}

// NewCalculationHandler creates a new calculation handler.
func NewCalculationHandler(deps CalculationDependencies) *CalculationHandler {
	return &CalculationHandler{deps: deps}
}

// HandleCalculate handles POST /api/vesting-schedules/{id}/calculate.
// ?asOf= overrides the valuation date; ?async=true queues the work.
func (h *CalculationHandler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	const op = "api.calculate"
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	q := r.URL.Query()
	var asOf *time.Time
	if raw := q.Get("asOf"); raw != "" {
		t, err := types.ParseDate(raw)
		if err != nil {
			writeServiceError(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		asOf = &t
	}
	async := false
	if raw := q.Get("async"); raw != "" {
		async, err = strconv.ParseBool(raw)
		if err != nil {
			writeServiceError(w, WrapKind(op, ErrBadRequest, fmt.Errorf("async: %w", err)))
			return
		}
	}

	if async {
		if err := h.deps.EnqueueCalculation(r.Context(), id, asOf, r.Header.Get(RequestIDHeader)); err != nil {
			writeServiceError(w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusAccepted, types.AcceptedResponse{Status: "accepted", VestingScheduleID: id.String()})
		return
	}

	calc, err := h.deps.Calculate(r.Context(), id, asOf)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, types.FromCalculation(calc))
}

// HandleGet handles GET /api/vesting-schedules/{id}/calculations/{calcId}.
func (h *CalculationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_calculation"
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	calcID, err := pathID(r, "calcId")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	calc, err := h.deps.GetCalculation(r.Context(), id, calcID)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromCalculation(calc))
}

// HandleExport handles GET .../calculations/{calcId}/export?format=xlsx|pdf.
func (h *CalculationHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_calculation"
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	calcID, err := pathID(r, "calcId")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatXLSX
	}

	ctx := r.Context()
	calc, err := h.deps.GetCalculation(ctx, id, calcID)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	sched, _, err := h.deps.GetSchedule(ctx, id)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	body, contentType, err := export.Render(format, sched, calc)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(calc, format)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
