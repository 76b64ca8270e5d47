package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/types"
	"github.com/matthewwoop/tokenvesting-mvp/pkg/logger"
)

// counters are shared by all workers of a run.
type counters struct {
	created      atomic.Int64
	posted       atomic.Int64
	duplicate    atomic.Int64
	calcOK       atomic.Int64
	calcFailed   atomic.Int64
	verifyFailed atomic.Int64
}

// Run executes a complete load run. It returns the statistics together
// with an error wrapping ErrVerification when any calculation was
// inconsistent.
func Run(ctx context.Context, cfg Config, log logger.Logger) (*Stats, error) {
	if cfg.Schedules <= 0 || cfg.Events <= 0 || cfg.Workers <= 0 {
		return nil, fmt.Errorf("%w: schedules, events and workers must be positive", ErrInvalidConfig)
	}
	asOf, err := types.ParseDate(cfg.AsOf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Token, cfg.Timeout)

	log.Info(ctx, "starting dlom load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("schedules", cfg.Schedules),
		logger.Int("events", cfg.Events),
		logger.Int("workers", cfg.Workers),
		logger.String("asOf", cfg.AsOf))

	if err := checkHealth(ctx, client); err != nil {
		return nil, err
	}

	plans := GeneratePlans(cfg.Schedules, cfg.Events, asOf)
	stats.SchedulesPlanned = len(plans)

	var c counters
	planChan := make(chan Plan, cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for plan := range planChan {
				if ctx.Err() != nil {
					return
				}
				if err := runPlan(ctx, client, cfg.AsOf, plan, &c); err != nil {
					if errors.Is(err, ErrVerification) {
						c.verifyFailed.Add(1)
					}
					log.Warn(ctx, "schedule run failed", logger.String("name", plan.Schedule.Name), logger.Error(err))
				} else if cfg.Verbose {
					log.Debug(ctx, "schedule verified", logger.String("name", plan.Schedule.Name))
				}
			}
		}()
	}

	go func() {
		defer close(planChan)
		for _, plan := range plans {
			select {
			case <-ctx.Done():
				return
			case planChan <- plan:
			}
		}
	}()

	wg.Wait()

	stats.SchedulesCreated = int(c.created.Load())
	stats.EventsPosted = int(c.posted.Load())
	stats.EventsDuplicate = int(c.duplicate.Load())
	stats.CalculationsOK = int(c.calcOK.Load())
	stats.CalculationsFailed = int(c.calcFailed.Load())
	stats.VerificationErrors = int(c.verifyFailed.Load())
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	logStats(ctx, log, stats)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.VerificationErrors > 0 {
		return stats, fmt.Errorf("%w: %d of %d calculations", ErrVerification, stats.VerificationErrors, stats.SchedulesPlanned)
	}
	return stats, nil
}

func checkHealth(ctx context.Context, client *Client) error {
	status, err := client.Get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	return nil
}

// runPlan creates one schedule, posts its events and verifies a synchronous calculation.
func runPlan(ctx context.Context, client *Client, asOf string, plan Plan, c *counters) error {
	var sched types.ScheduleResponse
	status, err := client.Post(ctx, "/api/vesting-schedules", plan.Schedule, nil, &sched)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("create schedule: %w %d", ErrUnexpectedStatus, status)
	}
	c.created.Add(1)

	base := "/api/vesting-schedules/" + url.PathEscape(sched.ID)
	for i, ev := range plan.Events {
		headers := map[string]string{idempotencyHeader: fmt.Sprintf("event-%d", i)}
		status, err := client.Post(ctx, base+"/unlock-events", ev, headers, nil)
		if err != nil {
			return err
		}
		switch status {
		case http.StatusCreated:
			c.posted.Add(1)
		case http.StatusOK:
			c.duplicate.Add(1)
		default:
			return fmt.Errorf("unlock event %d: %w %d", i, ErrUnexpectedStatus, status)
		}
	}

	var calc types.CalculationResponse
	status, err = client.Post(ctx, base+"/calculate?asOf="+url.QueryEscape(asOf), nil, nil, &calc)
	if err != nil {
		c.calcFailed.Add(1)
		return err
	}
	if status != http.StatusCreated {
		c.calcFailed.Add(1)
		return fmt.Errorf("calculate: %w %d", ErrUnexpectedStatus, status)
	}
	c.calcOK.Add(1)

	return Verify(plan, calc)
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.CalculationsOK) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("schedulesPlanned", stats.SchedulesPlanned),
		logger.Int("schedulesCreated", stats.SchedulesCreated),
		logger.Int("eventsPosted", stats.EventsPosted),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("calculationsOK", stats.CalculationsOK),
		logger.Int("calculationsFailed", stats.CalculationsFailed),
		logger.Int("verificationErrors", stats.VerificationErrors),
		logger.Duration("duration", stats.Duration),
		logger.Float64("calculationsPerSecond", perSecond))
}
