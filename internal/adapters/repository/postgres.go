package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dlom"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/model"
	"github.com/matthewwoop/tokenvesting-mvp/pkg/metrics"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schemaSQL string

// Postgres error codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore is a Store backed by PostgreSQL through the pgx driver.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreateSchedule implements Store.
func (s *PostgresStore) CreateSchedule(ctx context.Context, sched *model.VestingSchedule) error {
	defer observe("create_schedule", time.Now())

	if sched.ID == uuid.Nil {
		sched.ID = uuid.New()
	}
	if sched.CreatedAt.IsZero() {
		sched.CreatedAt = s.now().UTC()
	}

	var purchasePrice sql.NullString
	if sched.PurchasePrice != nil {
		purchasePrice = sql.NullString{String: sched.PurchasePrice.String(), Valid: true}
	}
	var purchaseDate sql.NullTime
	if sched.PurchaseDate != nil {
		purchaseDate = sql.NullTime{Time: *sched.PurchaseDate, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vesting_schedules (id, name, total_quantity, purchase_price, purchase_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sched.ID, sched.Name, sched.TotalQuantity.String(), purchasePrice, purchaseDate, sched.CreatedAt,
	)
	if err != nil {
		return storeError("create_schedule", fmt.Errorf("insert schedule %s: %w", sched.ID, mapPgError(err)))
	}
	return nil
}

const scheduleColumns = `id, name, total_quantity, purchase_price, purchase_date, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*model.VestingSchedule, error) {
	var (
		sched         model.VestingSchedule
		totalQuantity string
		purchasePrice sql.NullString
		purchaseDate  sql.NullTime
	)
	if err := row.Scan(&sched.ID, &sched.Name, &totalQuantity, &purchasePrice, &purchaseDate, &sched.CreatedAt); err != nil {
		return nil, err
	}
	qty, err := decimal.NewFromString(totalQuantity)
	if err != nil {
		return nil, fmt.Errorf("parse total_quantity: %w", err)
	}
	sched.TotalQuantity = qty
	if purchasePrice.Valid {
		p, err := decimal.NewFromString(purchasePrice.String)
		if err != nil {
			return nil, fmt.Errorf("parse purchase_price: %w", err)
		}
		sched.PurchasePrice = &p
	}
	if purchaseDate.Valid {
		d := purchaseDate.Time.UTC()
		sched.PurchaseDate = &d
	}
	sched.CreatedAt = sched.CreatedAt.UTC()
	return &sched, nil
}

// ListSchedules implements Store.
func (s *PostgresStore) ListSchedules(ctx context.Context) ([]model.VestingSchedule, error) {
	defer observe("list_schedules", time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM vesting_schedules ORDER BY created_at, id`)
	if err != nil {
		return nil, storeError("list_schedules", fmt.Errorf("query schedules: %w", err))
	}
	defer rows.Close()

	var out []model.VestingSchedule
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, storeError("list_schedules", fmt.Errorf("scan schedule: %w", err))
		}
		index[sched.ID] = len(out)
		out = append(out, *sched)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list_schedules", fmt.Errorf("iterate schedules: %w", err))
	}

	events, err := s.queryEvents(ctx, `SELECT `+eventColumns+` FROM unlock_events ORDER BY vesting_schedule_id, position`)
	if err != nil {
		return nil, storeError("list_schedules", err)
	}
	for _, ev := range events {
		if i, ok := index[ev.ScheduleID]; ok {
			out[i].UnlockEvents = append(out[i].UnlockEvents, ev)
		}
	}
	return out, nil
}

// GetSchedule implements Store.
func (s *PostgresStore) GetSchedule(ctx context.Context, id uuid.UUID) (*model.VestingSchedule, error) {
	defer observe("get_schedule", time.Now())

	sched, err := scanSchedule(s.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM vesting_schedules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storeError("get_schedule", fmt.Errorf("schedule %s: %w", id, ErrNotFound))
		}
		return nil, storeError("get_schedule", fmt.Errorf("get schedule %s: %w", id, err))
	}

	events, err := s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM unlock_events WHERE vesting_schedule_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, storeError("get_schedule", err)
	}
	sched.UnlockEvents = events
	return sched, nil
}

const eventColumns = `id, vesting_schedule_id, unlock_date, amount, frequency, position, created_at`

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]model.UnlockEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unlock events: %w", err)
	}
	defer rows.Close()

	var out []model.UnlockEvent
	for rows.Next() {
		var (
			ev        model.UnlockEvent
			amount    string
			frequency string
		)
		if err := rows.Scan(&ev.ID, &ev.ScheduleID, &ev.UnlockDate, &amount, &frequency, &ev.Position, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan unlock event: %w", err)
		}
		if ev.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		ev.Frequency = model.Frequency(frequency)
		ev.UnlockDate = ev.UnlockDate.UTC()
		ev.CreatedAt = ev.CreatedAt.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unlock events: %w", err)
	}
	return out, nil
}

// AddUnlockEvent implements Store. The schedule row is locked so that
// concurrent inserts get consecutive positions.
func (s *PostgresStore) AddUnlockEvent(ctx context.Context, ev *model.UnlockEvent) (err error) {
	defer observe("add_unlock_event", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("add_unlock_event", fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked uuid.UUID
	err = tx.QueryRowContext(ctx, `SELECT id FROM vesting_schedules WHERE id = $1 FOR UPDATE`, ev.ScheduleID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return storeError("add_unlock_event", fmt.Errorf("schedule %s: %w", ev.ScheduleID, ErrNotFound))
	}
	if err != nil {
		return storeError("add_unlock_event", fmt.Errorf("lock schedule: %w", err))
	}

	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO unlock_events (id, vesting_schedule_id, unlock_date, amount, frequency, position, created_at)
		VALUES ($1, $2, $3, $4, $5,
		        (SELECT COALESCE(MAX(position) + 1, 0) FROM unlock_events WHERE vesting_schedule_id = $2), $6)
		RETURNING position`,
		ev.ID, ev.ScheduleID, ev.UnlockDate, ev.Amount.String(), string(ev.Frequency), ev.CreatedAt,
	).Scan(&ev.Position)
	if err != nil {
		return storeError("add_unlock_event", fmt.Errorf("insert unlock event: %w", mapPgError(err)))
	}

	if err = tx.Commit(); err != nil {
		return storeError("add_unlock_event", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// SaveCalculation implements Store.
func (s *PostgresStore) SaveCalculation(ctx context.Context, c *model.Calculation) error {
	defer observe("save_calculation", time.Now())

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	payload, err := json.Marshal(c.Result)
	if err != nil {
		return storeError("save_calculation", fmt.Errorf("encode result: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dlom_calculations (
			id, vesting_schedule_id, as_of, run_at, symbol, spot, volatility, risk_free_rate,
			total_unlocked, total_locked, discount_percent, discounted_value, results_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.ScheduleID, c.AsOf, c.RunAt, c.Symbol,
		c.Market.Spot, c.Market.Volatility, c.Market.RiskFreeRate,
		c.Result.TotalUnlocked, c.Result.TotalLocked, c.Result.DiscountPercent, c.Result.DiscountedValue,
		payload,
	)
	if err != nil {
		return storeError("save_calculation", fmt.Errorf("insert calculation for schedule %s: %w", c.ScheduleID, mapPgError(err)))
	}
	return nil
}

const calculationColumns = `id, vesting_schedule_id, as_of, run_at, symbol, spot, volatility, risk_free_rate, results_json`

func scanCalculation(row rowScanner) (*model.Calculation, error) {
	var (
		c       model.Calculation
		payload []byte
	)
	if err := row.Scan(&c.ID, &c.ScheduleID, &c.AsOf, &c.RunAt, &c.Symbol,
		&c.Market.Spot, &c.Market.Volatility, &c.Market.RiskFreeRate, &payload); err != nil {
		return nil, err
	}
	var res dlom.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode results_json: %w", err)
	}
	c.Result = res
	c.AsOf = c.AsOf.UTC()
	c.RunAt = c.RunAt.UTC()
	return &c, nil
}

// ListCalculations implements Store.
func (s *PostgresStore) ListCalculations(ctx context.Context, scheduleID uuid.UUID) ([]model.Calculation, error) {
	defer observe("list_calculations", time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+calculationColumns+` FROM dlom_calculations WHERE vesting_schedule_id = $1 ORDER BY run_at DESC`,
		scheduleID)
	if err != nil {
		return nil, storeError("list_calculations", fmt.Errorf("query calculations: %w", err))
	}
	defer rows.Close()

	var out []model.Calculation
	for rows.Next() {
		c, err := scanCalculation(rows)
		if err != nil {
			return nil, storeError("list_calculations", fmt.Errorf("scan calculation: %w", err))
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list_calculations", fmt.Errorf("iterate calculations: %w", err))
	}
	return out, nil
}

// GetCalculation implements Store.
func (s *PostgresStore) GetCalculation(ctx context.Context, scheduleID, calcID uuid.UUID) (*model.Calculation, error) {
	defer observe("get_calculation", time.Now())

	c, err := scanCalculation(s.db.QueryRowContext(ctx,
		`SELECT `+calculationColumns+` FROM dlom_calculations WHERE id = $1 AND vesting_schedule_id = $2`,
		calcID, scheduleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeError("get_calculation", fmt.Errorf("calculation %s: %w", calcID, ErrNotFound))
	}
	if err != nil {
		return nil, storeError("get_calculation", fmt.Errorf("get calculation %s: %w", calcID, err))
	}
	return c, nil
}

// Count implements Store. Errors count as zero.
func (s *PostgresStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vesting_schedules`).Scan(&n); err != nil {
		metrics.RecordStoreError("count", "query")
		return 0
	}
	return n
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// mapPgError translates constraint violations into store sentinels.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrDuplicate)
	case pgForeignKeyViolation:
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrRelatedNotFound)
	}
	return err
}

// storeError records a store failure metric and returns err unchanged.
func storeError(op string, err error) error {
	kind := "other"
	switch {
	case errors.Is(err, ErrNotFound):
		kind = "not_found"
	case errors.Is(err, ErrRelatedNotFound):
		kind = "related_not_found"
	case errors.Is(err, ErrDuplicate):
		kind = "duplicate"
	}
	metrics.RecordStoreError(op, kind)
	return err
}
