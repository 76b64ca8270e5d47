// Package service orchestrates schedules, market data, the DLOM engine and
// persistence behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/marketdata"
	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/mq/queue"
	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/mq/worker"
	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/repository"
	"github.com/matthewwoop/tokenvesting-mvp/internal/auth"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dedupe"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dlom"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/model"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/types"
	"github.com/matthewwoop/tokenvesting-mvp/pkg/logger"
	"github.com/matthewwoop/tokenvesting-mvp/pkg/metrics"
)

// Service implements the API dependencies for the DLOM system.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	market  marketdata.Provider
	engine  *dlom.Engine
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool

	symbol       string
	riskFreeRate float64
	workerCount  int
	queueSize    int
	dedupeSize   int
	jobTimeout   time.Duration
	now          func() time.Time

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Without WithStore it keeps data in memory;
// without WithMarketData it uses the stub provider.
func New(opts ...Option) *Service {
	s := &Service{
		symbol:       "SOL",
		riskFreeRate: 0.03,
		workerCount:  runtime.NumCPU(),
		queueSize:    1024,
		dedupeSize:   50_000,
		jobTimeout:   30 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(context.Background())
	}
	if s.market == nil {
		s.market = marketdata.NewStubProvider()
	}
	if s.engine == nil {
		s.engine = dlom.NewEngine()
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start launches the background calculation workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting dlom service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s,
		worker.WithLogger(s.logger.Named("worker")),
		worker.WithJobTimeout(s.jobTimeout),
	)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "dlom service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("symbol", s.symbol),
		logger.Float64("riskFreeRate", s.riskFreeRate),
	)
	return nil
}

// Stop drains queued calculations and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.started {
		s.logger.Info(ctx, "stopping dlom service...")
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.cancel()
		s.started = false
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.logger.Info(ctx, "dlom service stopped")
	return errors.Join(errs...)
}

// CreateSchedule validates and stores a new vesting schedule.
func (s *Service) CreateSchedule(ctx context.Context, req types.CreateScheduleRequest) (*model.VestingSchedule, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if !req.TotalQuantity.IsPositive() {
		return nil, fmt.Errorf("%w: totalQuantity must be positive", ErrInvalidRequest)
	}
	if req.PurchasePrice != nil && req.PurchasePrice.IsNegative() {
		return nil, fmt.Errorf("%w: purchasePrice must not be negative", ErrInvalidRequest)
	}

	sched := &model.VestingSchedule{
		Name:          name,
		TotalQuantity: req.TotalQuantity,
		PurchasePrice: req.PurchasePrice,
		CreatedAt:     s.now().UTC(),
	}
	if req.PurchaseDate != nil && *req.PurchaseDate != "" {
		d, err := types.ParseDate(*req.PurchaseDate)
		if err != nil {
			return nil, fmt.Errorf("%w: purchaseDate: %v", ErrInvalidRequest, err)
		}
		sched.PurchaseDate = &d
	}

	if err := s.store.CreateSchedule(ctx, sched); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	s.logger.Info(ctx, "schedule created", withCaller(ctx,
		logger.String("schedule_id", sched.ID.String()),
		logger.String("name", sched.Name),
	)...)
	return sched, nil
}

// ListSchedules returns all schedules.
func (s *Service) ListSchedules(ctx context.Context) ([]model.VestingSchedule, error) {
	return s.store.ListSchedules(ctx)
}

// GetSchedule returns a schedule with its events and calculations.
func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID) (*model.VestingSchedule, []model.Calculation, error) {
	sched, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	calcs, err := s.store.ListCalculations(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return sched, calcs, nil
}

// AddUnlockEvent validates and appends an unlock event to a schedule.
func (s *Service) AddUnlockEvent(ctx context.Context, scheduleID uuid.UUID, req types.CreateUnlockEventRequest) (*model.UnlockEvent, error) {
	date, err := types.ParseDate(req.UnlockDate)
	if err != nil {
		return nil, fmt.Errorf("%w: unlockDate: %v", ErrInvalidRequest, err)
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidRequest)
	}
	freq, err := model.ParseFrequency(req.Frequency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	ev := &model.UnlockEvent{
		ScheduleID: scheduleID,
		UnlockDate: date,
		Amount:     req.Amount,
		Frequency:  freq,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.AddUnlockEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("add unlock event: %w", err)
	}
	s.logger.Info(ctx, "unlock event added", withCaller(ctx,
		logger.String("schedule_id", scheduleID.String()),
		logger.String("event_id", ev.ID.String()),
		logger.Int("position", ev.Position),
	)...)
	return ev, nil
}

// Calculate runs a DLOM valuation of a schedule and stores it. A nil asOf
// means now. Errors are returned as-is; no partial result is stored.
func (s *Service) Calculate(ctx context.Context, scheduleID uuid.UUID, asOf *time.Time) (*model.Calculation, error) {
	start := time.Now()
	calc, err := s.calculate(ctx, scheduleID, asOf)
	if err != nil {
		metrics.RecordCalculationError(errorKind(err))
		s.logger.Warn(ctx, "calculation failed", withCaller(ctx,
			logger.String("schedule_id", scheduleID.String()),
			logger.String("symbol", s.symbol),
			logger.Error(err),
		)...)
		return nil, err
	}

	metrics.RecordCalculation(float64(time.Since(start).Microseconds())/1000, len(calc.Result.PerEvent), calc.Result.DiscountPercent)
	s.logger.Info(ctx, "calculation stored", withCaller(ctx,
		logger.String("schedule_id", scheduleID.String()),
		logger.String("calculation_id", calc.ID.String()),
		logger.String("symbol", calc.Symbol),
		logger.Float64("discount_percent", calc.Result.DiscountPercent),
	)...)
	return calc, nil
}

func (s *Service) calculate(ctx context.Context, scheduleID uuid.UUID, asOf *time.Time) (*model.Calculation, error) {
	sched, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	if asOf != nil {
		at = asOf.UTC()
	}
	// Postgres keeps microseconds; both stores see the same asOf.
	at = at.Truncate(time.Microsecond)

	snap, err := marketdata.Snapshot(ctx, s.market, s.symbol, s.riskFreeRate)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Compute(sched.EngineSchedule(), snap, at)
	if err != nil {
		return nil, fmt.Errorf("compute dlom for schedule %s: %w", scheduleID, err)
	}
	if !res.Alternatives.OrderedChronologically {
		metrics.RecordUnorderedSchedule()
		s.logger.Warn(ctx, "unlock events are not in chronological order; discountPercent uses the last inserted event",
			logger.String("schedule_id", scheduleID.String()),
			logger.Float64("chronological_last_discount_percent", res.Alternatives.ChronologicalLastDiscountPercent),
		)
	}

	calc := &model.Calculation{
		ID:         uuid.New(),
		ScheduleID: scheduleID,
		AsOf:       at,
		RunAt:      s.now().UTC(),
		Symbol:     s.symbol,
		Market:     snap,
		Result:     res,
	}
	if err := s.store.SaveCalculation(ctx, calc); err != nil {
		return nil, fmt.Errorf("save calculation: %w", err)
	}
	return calc, nil
}

// EnqueueCalculation schedules a background calculation. The schedule must
// exist. Returns ErrBusy when the queue is full.
func (s *Service) EnqueueCalculation(ctx context.Context, scheduleID uuid.UUID, asOf *time.Time, requestID string) error {
	s.mu.RLock()
	q := s.queue
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	if _, err := s.store.GetSchedule(ctx, scheduleID); err != nil {
		return err
	}

	job := model.CalculationJob{
		ScheduleID:  scheduleID,
		AsOf:        asOf,
		RequestedAt: s.now().UTC(),
		RequestID:   requestID,
	}
	if err := q.Enqueue(ctx, job); err != nil {
		if errors.Is(err, queue.ErrFull) {
			return fmt.Errorf("%w: %v", ErrBusy, err)
		}
		if errors.Is(err, queue.ErrClosed) {
			return fmt.Errorf("%w: %v", ErrNotStarted, err)
		}
		return err
	}
	s.logger.Debug(ctx, "calculation enqueued",
		logger.String("schedule_id", scheduleID.String()),
		logger.String("request_id", requestID),
	)
	return nil
}

// ProcessJob runs a queued calculation.
func (s *Service) ProcessJob(ctx context.Context, job queue.Job) error {
	_, err := s.Calculate(ctx, job.ScheduleID, job.AsOf)
	return err
}

// GetCalculation returns one stored calculation of a schedule.
func (s *Service) GetCalculation(ctx context.Context, scheduleID, calcID uuid.UUID) (*model.Calculation, error) {
	return s.store.GetCalculation(ctx, scheduleID, calcID)
}

// ListCalculations returns the stored calculations of a schedule.
func (s *Service) ListCalculations(ctx context.Context, scheduleID uuid.UUID) ([]model.Calculation, error) {
	if _, err := s.store.GetSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}
	return s.store.ListCalculations(ctx, scheduleID)
}

// SeenAndRecord atomically checks if an idempotency key was seen and
// records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordDuplicateRequest()
	}
	return seen
}

// Complete attaches the created record id to an idempotency key.
func (s *Service) Complete(ctx context.Context, key, ref string) {
	s.deduper.Complete(ctx, key, ref)
}

// Lookup returns the record id stored for an idempotency key.
func (s *Service) Lookup(ctx context.Context, key string) (string, bool) {
	return s.deduper.Lookup(ctx, key)
}

// Unrecord forgets a key so a failed request can be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":      s.started,
		"symbol":       s.symbol,
		"riskFreeRate": s.riskFreeRate,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"dedupeKeys":   s.deduper.Size(),
	}

	total := s.store.Count(ctx)
	stats["totalSchedules"] = total
	metrics.UpdateTotalSchedules(total)

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

// Symbol returns the token symbol calculations use.
func (s *Service) Symbol() string { return s.symbol }

// withCaller appends the authenticated subject and role, when present.
func withCaller(ctx context.Context, fields ...logger.Field) []logger.Field {
	if subject := auth.SubjectFromContext(ctx); subject != "" {
		fields = append(fields, logger.String("subject", subject))
	}
	if role := auth.RoleFromContext(ctx); role != "" {
		fields = append(fields, logger.String("role", string(role)))
	}
	return fields
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrRelatedNotFound):
		return "related_not_found"
	case errors.Is(err, repository.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, marketdata.ErrUnsupportedSymbol):
		return "unsupported_symbol"
	case errors.Is(err, dlom.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	default:
		return "internal"
	}
}

var _ worker.Processor = (*Service)(nil)
