package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dlom"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/model"
	types "github.com/matthewwoop/tokenvesting-mvp/internal/domain/types"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseDate(t *testing.T) {
	Convey("Given date strings", t, func() {
		Convey("When the input is RFC3339 with an offset", func() {
			got, err := types.ParseDate("2025-06-01T12:00:00+02:00")
			So(err, ShouldBeNil)
			So(got, ShouldEqual, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
		})

		Convey("When the input is a plain date", func() {
			got, err := types.ParseDate(" 2025-06-01 ")
			So(err, ShouldBeNil)
			So(got, ShouldEqual, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
		})

		Convey("When the input is garbage", func() {
			_, err := types.ParseDate("next tuesday")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestFromCalculation(t *testing.T) {
	Convey("Given a stored calculation", t, func() {
		unlock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		calc := &model.Calculation{
			ID:         uuid.New(),
			ScheduleID: uuid.New(),
			AsOf:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Symbol:     "SOL",
			Market:     dlom.MarketSnapshot{Spot: 150, Volatility: 0.87, RiskFreeRate: 0.03},
			Result: dlom.Result{
				TotalUnlocked:   10,
				TotalLocked:     90,
				DiscountPercent: 31.7,
				DiscountedValue: 1024.5,
				PerEvent: []dlom.UnlockPricingResult{
					{Date: unlock, UnlockAmount: 10, Premium: 47.5, Discount: 0.317},
				},
			},
		}

		Convey("When serialized", func() {
			raw, err := json.Marshal(types.FromCalculation(calc))
			So(err, ShouldBeNil)

			var doc map[string]any
			So(json.Unmarshal(raw, &doc), ShouldBeNil)

			Convey("Then the aggregate fields sit at the top level", func() {
				So(doc["totalUnlocked"], ShouldEqual, 10.0)
				So(doc["totalLocked"], ShouldEqual, 90.0)
				So(doc["discountPercent"], ShouldEqual, 31.7)
				So(doc["discountedValue"], ShouldEqual, 1024.5)
				So(doc["vestingScheduleId"], ShouldEqual, calc.ScheduleID.String())
				So(doc["spot"], ShouldEqual, 150.0)
			})

			Convey("Then resultsJson and perEvent carry the same events", func() {
				So(doc["resultsJson"], ShouldResemble, doc["perEvent"])
				events := doc["perEvent"].([]any)
				So(events, ShouldHaveLength, 1)
				ev := events[0].(map[string]any)
				So(ev["date"], ShouldEqual, "2026-01-01T00:00:00Z")
				So(ev["unlockAmount"], ShouldEqual, 10.0)
				So(ev["premium"], ShouldEqual, 47.5)
				So(ev["discount"], ShouldEqual, 0.317)
				_, hasGreeks := ev["greeks"]
				So(hasGreeks, ShouldBeFalse)
			})
		})
	})
}

func TestFromSchedule(t *testing.T) {
	Convey("Given a schedule with one event", t, func() {
		id := uuid.New()
		s := &model.VestingSchedule{
			ID:            id,
			Name:          "Seed round",
			TotalQuantity: decimal.NewFromInt(1000),
			UnlockEvents: []model.UnlockEvent{{
				ID:         uuid.New(),
				ScheduleID: id,
				UnlockDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				Amount:     decimal.NewFromInt(250),
				Frequency:  model.FrequencyCliff,
			}},
		}

		Convey("When converted without calculations", func() {
			resp := types.FromSchedule(s, nil)
			So(resp.ID, ShouldEqual, id.String())
			So(resp.UnlockEvents, ShouldHaveLength, 1)
			So(resp.UnlockEvents[0].Frequency, ShouldEqual, "cliff")
			So(resp.UnlockEvents[0].VestingScheduleID, ShouldEqual, id.String())
			So(resp.DlomCalculations, ShouldBeEmpty)
		})
	})
}
