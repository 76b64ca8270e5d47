package api

import (
	"net/http"

	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/types"
)

// ScheduleHandler handles vesting schedule and unlock event requests.
type ScheduleHandler struct {
	deps        ScheduleDependencies
	idempotency Idempotency
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(deps ScheduleDependencies, idem Idempotency) *ScheduleHandler {
	return &ScheduleHandler{deps: deps, idempotency: idem}
}

// HandleList handles GET /api/vesting-schedules.
func (h *ScheduleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_schedules"
	schedules, err := h.deps.ListSchedules(r.Context())
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	out := make([]types.ScheduleResponse, len(schedules))
	for i := range schedules {
		out[i] = types.FromSchedule(&schedules[i], nil)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /api/vesting-schedules.
func (h *ScheduleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_schedule"
	var req types.CreateScheduleRequest
	if err := decodeBody(r, w, &req); err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	sched, err := h.deps.CreateSchedule(r.Context(), req)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, types.FromSchedule(sched, nil))
}

// HandleGet handles GET /api/vesting-schedules/{id}.
func (h *ScheduleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_schedule"
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sched, calcs, err := h.deps.GetSchedule(r.Context(), id)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromSchedule(sched, calcs))
}

// HandleAddUnlockEvent handles POST /api/vesting-schedules/{id}/unlock-events.
// A repeated Idempotency-Key returns the event created by the first request.
func (h *ScheduleHandler) HandleAddUnlockEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_unlock_event"
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req types.CreateUnlockEventRequest
	if err := decodeBody(r, w, &req); err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	ctx := r.Context()
	key := r.Header.Get(IdempotencyHeader)
	if key != "" {
		key = id.String() + ":" + key
		if h.idempotency.SeenAndRecord(ctx, key) {
			ref, _ := h.idempotency.Lookup(ctx, key)
			if ref == "" {
				writeServiceError(w, NewKind(op, ErrInFlight))
				return
			}
			writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, ID: ref})
			return
		}
	}

	ev, err := h.deps.AddUnlockEvent(ctx, id, req)
	if err != nil {
		if key != "" {
			h.idempotency.Unrecord(ctx, key)
		}
		writeServiceError(w, Wrap(op, err))
		return
	}
	if key != "" {
		h.idempotency.Complete(ctx, key, ev.ID.String())
	}
	writeJSON(w, http.StatusCreated, types.FromUnlockEvent(ev))
}
