package dlom_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dlom"
	. "github.com/smartystreets/goconvey/convey"
)

var asOf = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func years(y float64) time.Time {
	return asOf.Add(time.Duration(y * float64(365*24*time.Hour)))
}

func TestEngineCompute(t *testing.T) {
	sol := dlom.MarketSnapshot{Spot: 150, Volatility: 0.87, RiskFreeRate: 0.03}

	Convey("Given a DLOM engine", t, func() {
		engine := dlom.NewEngine()

		Convey("When the schedule has no unlock events", func() {
			res, err := engine.Compute(dlom.Schedule{TotalQuantity: 1000}, sol, asOf)

			Convey("Then the aggregate is empty and everything stays locked", func() {
				So(err, ShouldBeNil)
				So(res.DiscountPercent, ShouldEqual, 0)
				So(res.DiscountedValue, ShouldEqual, 0)
				So(res.TotalUnlocked, ShouldEqual, 0)
				So(res.TotalLocked, ShouldEqual, 1000)
				So(res.PerEvent, ShouldBeEmpty)
				So(res.Alternatives.OrderedChronologically, ShouldBeTrue)
			})
		})

		Convey("When a single unlock is one year out", func() {
			res, err := engine.Compute(dlom.Schedule{
				TotalQuantity: 1000,
				UnlockEvents:  []dlom.UnlockEvent{{UnlockDate: years(1), Amount: 400}},
			}, sol, asOf)

			Convey("Then it reproduces the reference SOL valuation", func() {
				So(err, ShouldBeNil)
				So(res.PerEvent, ShouldHaveLength, 1)
				So(res.PerEvent[0].Premium, ShouldAlmostEqual, 47.53106193709607, 1e-6)
				So(res.PerEvent[0].Discount, ShouldAlmostEqual, 0.31687374624730713, 1e-8)
				So(res.DiscountPercent, ShouldAlmostEqual, 31.687374624730713, 1e-6)
				So(res.TotalUnlocked, ShouldEqual, 400)
				So(res.TotalLocked, ShouldEqual, 600)
				So(res.DiscountedValue, ShouldAlmostEqual, 400*150*(1-0.31687374624730713), 1e-4)
				So(res.PerEvent[0].Greeks, ShouldBeNil)
			})
		})

		Convey("When an unlock date is already in the past", func() {
			res, err := engine.Compute(dlom.Schedule{
				TotalQuantity: 100,
				UnlockEvents:  []dlom.UnlockEvent{{UnlockDate: asOf.AddDate(0, -3, 0), Amount: 100}},
			}, sol, asOf)

			Convey("Then the at-the-money put is worth nothing", func() {
				So(err, ShouldBeNil)
				So(res.PerEvent[0].Premium, ShouldEqual, 0)
				So(res.PerEvent[0].Discount, ShouldEqual, 0)
				So(res.DiscountedValue, ShouldEqual, 100*150)
			})
		})

		Convey("When events arrive out of chronological order", func() {
			market := dlom.MarketSnapshot{Spot: 100, Volatility: 0.5, RiskFreeRate: 0}
			res, err := engine.Compute(dlom.Schedule{
				TotalQuantity: 300,
				UnlockEvents: []dlom.UnlockEvent{
					{UnlockDate: years(1), Amount: 100},
					{UnlockDate: years(0.25), Amount: 300},
				},
			}, market, asOf)

			Convey("Then per-event order follows the input", func() {
				So(err, ShouldBeNil)
				So(res.PerEvent[0].Date, ShouldEqual, years(1))
				So(res.PerEvent[1].Date, ShouldEqual, years(0.25))
			})

			Convey("Then the headline uses the positionally last event", func() {
				So(res.DiscountPercent, ShouldAlmostEqual, 9.947678813967925, 1e-6)
			})

			Convey("Then the alternatives describe the other readings", func() {
				alts := res.Alternatives
				So(alts.OrderedChronologically, ShouldBeFalse)
				So(alts.ChronologicalLastDiscountPercent, ShouldAlmostEqual, 19.741276645113673, 1e-6)
				So(alts.MaxDiscountPercent, ShouldAlmostEqual, 19.741276645113673, 1e-6)
				So(alts.MeanDiscountPercent, ShouldAlmostEqual, (19.741276645113673+9.947678813967925)/2, 1e-6)
				So(alts.AmountWeightedDiscountPercent, ShouldAlmostEqual,
					(100*19.741276645113673+300*9.947678813967925)/400, 1e-6)
			})

			Convey("Then total locked can go negative", func() {
				So(res.TotalUnlocked, ShouldEqual, 400)
				So(res.TotalLocked, ShouldEqual, -100)
			})
		})

		Convey("When the market snapshot is invalid", func() {
			schedule := dlom.Schedule{
				TotalQuantity: 10,
				UnlockEvents:  []dlom.UnlockEvent{{UnlockDate: years(1), Amount: 10}},
			}
			for name, m := range map[string]dlom.MarketSnapshot{
				"zero spot":           {Spot: 0, Volatility: 0.5},
				"negative volatility": {Spot: 10, Volatility: -0.1},
				"NaN volatility":      {Spot: 10, Volatility: math.NaN()},
				"infinite rate":       {Spot: 10, Volatility: 0.5, RiskFreeRate: math.Inf(-1)},
				"zero volatility":     {Spot: 10, Volatility: 0},
			} {
				Convey("Then "+name+" fails with ErrInvalidInput", func() {
					res, err := engine.Compute(schedule, m, asOf)
					So(errors.Is(err, dlom.ErrInvalidInput), ShouldBeTrue)
					So(res.PerEvent, ShouldBeNil)
				})
			}
		})

		Convey("When zero volatility only meets past unlocks", func() {
			res, err := engine.Compute(dlom.Schedule{
				TotalQuantity: 10,
				UnlockEvents:  []dlom.UnlockEvent{{UnlockDate: asOf.Add(-time.Hour), Amount: 10}},
			}, dlom.MarketSnapshot{Spot: 10}, asOf)

			Convey("Then pricing succeeds with intrinsic value", func() {
				So(err, ShouldBeNil)
				So(res.DiscountPercent, ShouldEqual, 0)
			})
		})
	})
}

func TestEngineParallelism(t *testing.T) {
	Convey("Given a schedule with many monthly unlocks", t, func() {
		schedule := dlom.Schedule{TotalQuantity: 1_000_000}
		for i := 0; i < 96; i++ {
			schedule.UnlockEvents = append(schedule.UnlockEvents, dlom.UnlockEvent{
				UnlockDate: asOf.AddDate(0, i-6, 0),
				Amount:     float64(1000 + i),
			})
		}
		market := dlom.MarketSnapshot{Spot: 150, Volatility: 0.87, RiskFreeRate: 0.03}

		Convey("When priced sequentially and in parallel", func() {
			seq, err := dlom.NewEngine().Compute(schedule, market, asOf)
			So(err, ShouldBeNil)
			par, err := dlom.NewEngine(dlom.WithParallelism(8)).Compute(schedule, market, asOf)
			So(err, ShouldBeNil)

			Convey("Then the results are identical and ordered", func() {
				So(par, ShouldResemble, seq)
				So(par.PerEvent, ShouldHaveLength, 96)
				for i, ev := range par.PerEvent {
					So(ev.Date, ShouldEqual, schedule.UnlockEvents[i].UnlockDate)
				}
				So(par.Alternatives.OrderedChronologically, ShouldBeTrue)
				So(par.DiscountPercent, ShouldEqual, par.PerEvent[95].Discount*100)
			})
		})

		Convey("When a parallel run hits an unpriceable event", func() {
			_, err := dlom.NewEngine(dlom.WithParallelism(4)).Compute(schedule,
				dlom.MarketSnapshot{Spot: 150, Volatility: 0}, asOf)

			Convey("Then the whole computation fails", func() {
				So(errors.Is(err, dlom.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})
}

func TestEngineGreeks(t *testing.T) {
	Convey("Given an engine with Greeks enabled", t, func() {
		engine := dlom.NewEngine(dlom.WithGreeks(true))
		res, err := engine.Compute(dlom.Schedule{
			TotalQuantity: 1,
			UnlockEvents:  []dlom.UnlockEvent{{UnlockDate: years(1), Amount: 1}},
		}, dlom.MarketSnapshot{Spot: 150, Volatility: 0.87, RiskFreeRate: 0.03}, asOf)

		So(err, ShouldBeNil)
		So(res.PerEvent[0].Greeks, ShouldNotBeNil)
		So(res.PerEvent[0].Greeks.Delta, ShouldBeLessThan, 0)
		So(res.PerEvent[0].Greeks.Vega, ShouldBeGreaterThan, 0)
	})
}

func TestYearFraction(t *testing.T) {
	Convey("Given unlock dates around asOf", t, func() {
		So(dlom.YearFraction(asOf, years(1)), ShouldEqual, 1)
		So(dlom.YearFraction(asOf, asOf), ShouldEqual, 0)
		So(dlom.YearFraction(asOf, asOf.Add(-time.Minute)), ShouldEqual, 0)
		So(dlom.YearFraction(asOf, asOf.Add(73*24*time.Hour)), ShouldAlmostEqual, 0.2, 1e-12)
	})

	Convey("Given an unlock five centuries out", t, func() {
		from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2525, 1, 1, 0, 0, 0, 0, time.UTC)

		Convey("Then the horizon is not capped at the time.Duration range", func() {
			So(dlom.YearFraction(from, to), ShouldAlmostEqual, 500.3315068493151, 1e-9)
		})
	})
}
