package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/model"
	"github.com/matthewwoop/tokenvesting-mvp/pkg/metrics"
)

type calcKey struct {
	scheduleID uuid.UUID
	asOf       int64
}

// MemoryStore is an in-memory Store. Values are copied on the way in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]*model.VestingSchedule
	order     []uuid.UUID
	calcs     map[uuid.UUID][]model.Calculation
	calcKeys  map[calcKey]uuid.UUID

	now                   func() time.Time
	metricsUpdateInterval time.Duration
	stopChan              chan struct{}
	stopOnce              sync.Once
	wg                    sync.WaitGroup
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		schedules:             make(map[uuid.UUID]*model.VestingSchedule),
		calcs:                 make(map[uuid.UUID][]model.Calculation),
		calcKeys:              make(map[calcKey]uuid.UUID),
		now:                   time.Now,
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// CreateSchedule implements Store.
func (s *MemoryStore) CreateSchedule(ctx context.Context, sched *model.VestingSchedule) error {
	defer observe("create_schedule", time.Now())

	if sched.ID == uuid.Nil {
		sched.ID = uuid.New()
	}
	if sched.CreatedAt.IsZero() {
		sched.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[sched.ID]; ok {
		metrics.RecordStoreError("create_schedule", "duplicate")
		return fmt.Errorf("schedule %s: %w", sched.ID, ErrDuplicate)
	}
	cp := cloneSchedule(sched)
	cp.UnlockEvents = nil
	s.schedules[sched.ID] = cp
	s.order = append(s.order, sched.ID)
	return nil
}

// ListSchedules implements Store.
func (s *MemoryStore) ListSchedules(ctx context.Context) ([]model.VestingSchedule, error) {
	defer observe("list_schedules", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.VestingSchedule, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *cloneSchedule(s.schedules[id]))
	}
	return out, nil
}

// GetSchedule implements Store.
func (s *MemoryStore) GetSchedule(ctx context.Context, id uuid.UUID) (*model.VestingSchedule, error) {
	defer observe("get_schedule", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.schedules[id]
	if !ok {
		metrics.RecordStoreError("get_schedule", "not_found")
		return nil, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return cloneSchedule(sched), nil
}

// AddUnlockEvent implements Store.
func (s *MemoryStore) AddUnlockEvent(ctx context.Context, ev *model.UnlockEvent) error {
	defer observe("add_unlock_event", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[ev.ScheduleID]
	if !ok {
		metrics.RecordStoreError("add_unlock_event", "not_found")
		return fmt.Errorf("schedule %s: %w", ev.ScheduleID, ErrNotFound)
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	ev.Position = len(sched.UnlockEvents)
	sched.UnlockEvents = append(sched.UnlockEvents, *ev)
	return nil
}

// SaveCalculation implements Store.
func (s *MemoryStore) SaveCalculation(ctx context.Context, c *model.Calculation) error {
	defer observe("save_calculation", time.Now())

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[c.ScheduleID]; !ok {
		metrics.RecordStoreError("save_calculation", "related_not_found")
		return fmt.Errorf("schedule %s: %w", c.ScheduleID, ErrRelatedNotFound)
	}
	key := calcKey{scheduleID: c.ScheduleID, asOf: c.AsOf.UnixMicro()}
	if existing, ok := s.calcKeys[key]; ok {
		metrics.RecordStoreError("save_calculation", "duplicate")
		return fmt.Errorf("schedule %s as of %s (calculation %s): %w",
			c.ScheduleID, c.AsOf.Format(time.RFC3339), existing, ErrDuplicate)
	}
	s.calcKeys[key] = c.ID
	s.calcs[c.ScheduleID] = append(s.calcs[c.ScheduleID], cloneCalculation(c))
	return nil
}

// ListCalculations implements Store.
func (s *MemoryStore) ListCalculations(ctx context.Context, scheduleID uuid.UUID) ([]model.Calculation, error) {
	defer observe("list_calculations", time.Now())

	s.mu.RLock()
	stored := s.calcs[scheduleID]
	out := make([]model.Calculation, len(stored))
	for i := range stored {
		out[i] = cloneCalculation(&stored[i])
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].RunAt.After(out[j].RunAt) })
	return out, nil
}

// GetCalculation implements Store.
func (s *MemoryStore) GetCalculation(ctx context.Context, scheduleID, calcID uuid.UUID) (*model.Calculation, error) {
	defer observe("get_calculation", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.calcs[scheduleID] {
		if s.calcs[scheduleID][i].ID == calcID {
			c := cloneCalculation(&s.calcs[scheduleID][i])
			return &c, nil
		}
	}
	metrics.RecordStoreError("get_calculation", "not_found")
	return nil, fmt.Errorf("calculation %s: %w", calcID, ErrNotFound)
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.schedules)
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateTotalSchedules(s.Count(ctx))
			}
		}
	}()
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func cloneSchedule(s *model.VestingSchedule) *model.VestingSchedule {
	cp := *s
	if s.PurchasePrice != nil {
		p := *s.PurchasePrice
		cp.PurchasePrice = &p
	}
	if s.PurchaseDate != nil {
		d := *s.PurchaseDate
		cp.PurchaseDate = &d
	}
	cp.UnlockEvents = append([]model.UnlockEvent(nil), s.UnlockEvents...)
	return &cp
}

func cloneCalculation(c *model.Calculation) model.Calculation {
	cp := *c
	cp.Result.PerEvent = append(cp.Result.PerEvent[:0:0], c.Result.PerEvent...)
	for i, ev := range cp.Result.PerEvent {
		if ev.Greeks != nil {
			g := *ev.Greeks
			cp.Result.PerEvent[i].Greeks = &g
		}
	}
	return cp
}
