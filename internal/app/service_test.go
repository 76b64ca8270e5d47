package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	service "github.com/matthewwoop/tokenvesting-mvp/internal/app"
	"github.com/matthewwoop/tokenvesting-mvp/internal/auth"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/types"
	"github.com/shopspring/decimal"
	"github.com/matthewwoop/tokenvesting-mvp/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()
		defer svc.Stop(context.Background())

		Convey("Then it should value schedules in SOL", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Symbol(), ShouldEqual, "SOL")
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(16),
			service.WithDedupeSize(25_000),
			service.WithSymbol("ETH"),
			service.WithRiskFreeRate(0.05),
		)
		defer svc.Stop(context.Background())

		Convey("Then stats reflect the options", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 16)
			So(stats["symbol"], ShouldEqual, "ETH")
			So(stats["riskFreeRate"], ShouldEqual, 0.05)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it should be marked as started", func() {
				So(svc.GetStats()["started"], ShouldEqual, true)
				So(svc.GetStats()["queueLength"], ShouldEqual, 0)
			})

			Convey("And starting twice is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And stopping marks it as stopped", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Reset(func() { _ = svc.Stop(ctx) })
		})
	})
}

func TestService_Idempotency(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New()
		defer svc.Stop(context.Background())
		ctx := context.Background()

		Convey("A new key has not been seen", func() {
			So(svc.SeenAndRecord(ctx, "key-123"), ShouldBeFalse)
		})

		Convey("The same key is seen the second time", func() {
			svc.SeenAndRecord(ctx, "key-456")
			So(svc.SeenAndRecord(ctx, "key-456"), ShouldBeTrue)

			Convey("And Lookup reports it in flight until completed", func() {
				ref, ok := svc.Lookup(ctx, "key-456")
				So(ok, ShouldBeTrue)
				So(ref, ShouldBeEmpty)

				svc.Complete(ctx, "key-456", "event-1")
				ref, _ = svc.Lookup(ctx, "key-456")
				So(ref, ShouldEqual, "event-1")
			})
		})

		Convey("An unrecorded key can be used again", func() {
			svc.SeenAndRecord(ctx, "key-789")
			svc.Unrecord(ctx, "key-789")
			So(svc.SeenAndRecord(ctx, "key-789"), ShouldBeFalse)
		})
	})
}

func TestService_CallerLogging(t *testing.T) {
	Convey("Given a service logging JSON to a buffer", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithWriter(&buf), logger.WithFormat("json")), ShouldBeNil)
		defer func() { _ = logger.Init() }()

		svc := service.New(service.WithLogger(logger.Get()))
		defer svc.Stop(context.Background())

		Convey("Writes by an authenticated caller carry subject and role", func() {
			ctx := auth.WithIdentity(context.Background(), auth.RoleEditor, "ops@example.com")
			sched, err := svc.CreateSchedule(ctx, types.CreateScheduleRequest{Name: "seed", TotalQuantity: decimal.NewFromInt(100)})
			So(err, ShouldBeNil)
			_, err = svc.AddUnlockEvent(ctx, sched.ID, types.CreateUnlockEventRequest{
				UnlockDate: "2026-01-01", Amount: decimal.NewFromInt(10), Frequency: "cliff",
			})
			So(err, ShouldBeNil)

			So(buf.String(), ShouldContainSubstring, `"subject":"ops@example.com"`)
			So(buf.String(), ShouldContainSubstring, `"role":"editor"`)
			So(bytes.Count(buf.Bytes(), []byte(`"subject":"ops@example.com"`)), ShouldEqual, 2)
		})

		Convey("Anonymous writes log no identity", func() {
			_, err := svc.CreateSchedule(context.Background(), types.CreateScheduleRequest{Name: "anon", TotalQuantity: decimal.NewFromInt(1)})
			So(err, ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "schedule created")
			So(buf.String(), ShouldNotContainSubstring, `"subject"`)
		})
	})
}
