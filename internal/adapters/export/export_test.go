package export_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matthewwoop/tokenvesting-mvp/internal/adapters/export"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/dlom"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/model"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"
)

func fixture() (*model.VestingSchedule, *model.Calculation) {
	asOf := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sched := &model.VestingSchedule{
		ID:            uuid.New(),
		Name:          "seed round",
		TotalQuantity: decimal.NewFromInt(1000),
	}
	calc := &model.Calculation{
		ID:         uuid.New(),
		ScheduleID: sched.ID,
		AsOf:       asOf,
		RunAt:      asOf,
		Symbol:     "SOL",
		Market:     dlom.MarketSnapshot{Spot: 150, Volatility: 0.87, RiskFreeRate: 0.03},
		Result: dlom.Result{
			TotalUnlocked:   1000,
			DiscountPercent: 31.687374624730713,
			DiscountedValue: 102468.93806290393,
			PerEvent: []dlom.UnlockPricingResult{
				{Date: asOf.AddDate(1, 0, 0), UnlockAmount: 1000, Premium: 47.53106193709607, Discount: 0.31687374624730713},
			},
		},
	}
	return sched, calc
}

func TestBuildCalculationXLSX(t *testing.T) {
	Convey("Given a stored calculation", t, func() {
		sched, calc := fixture()

		Convey("The workbook has summary and events sheets with rounded values", func() {
			b, err := export.BuildCalculationXLSX(sched, calc)
			So(err, ShouldBeNil)

			f, err := excelize.OpenReader(bytes.NewReader(b))
			So(err, ShouldBeNil)
			defer f.Close()

			So(f.GetSheetList(), ShouldResemble, []string{"summary", "events"})

			title, _ := f.GetCellValue("summary", "A1")
			So(title, ShouldEqual, "DLOM Calculation")
			name, _ := f.GetCellValue("summary", "B3")
			So(name, ShouldEqual, "seed round")

			date, _ := f.GetCellValue("events", "B2")
			So(date, ShouldEqual, "2026-01-01")
			premium, _ := f.GetCellValue("events", "D2", excelize.Options{RawCellValue: true})
			So(premium, ShouldEqual, "47.53")
			disc, _ := f.GetCellValue("events", "E2", excelize.Options{RawCellValue: true})
			So(disc, ShouldEqual, "0.316874")
		})
	})
}

func TestBuildCalculationPDF(t *testing.T) {
	Convey("Given a stored calculation", t, func() {
		sched, calc := fixture()

		Convey("The PDF is a non-empty PDF document", func() {
			b, err := export.BuildCalculationPDF(sched, calc)
			So(err, ShouldBeNil)
			So(bytes.HasPrefix(b, []byte("%PDF-")), ShouldBeTrue)
		})
	})
}

func TestRender(t *testing.T) {
	Convey("Render dispatches on format", t, func() {
		sched, calc := fixture()

		_, ct, err := export.Render(export.FormatXLSX, sched, calc)
		So(err, ShouldBeNil)
		So(ct, ShouldEqual, export.ContentTypeXLSX)

		_, ct, err = export.Render(export.FormatPDF, sched, calc)
		So(err, ShouldBeNil)
		So(ct, ShouldEqual, export.ContentTypePDF)

		_, _, err = export.Render("csv", sched, calc)
		So(errors.Is(err, export.ErrUnsupportedFormat), ShouldBeTrue)

		name := export.Filename(calc, export.FormatPDF)
		So(strings.HasPrefix(name, "dlom-2025-01-01-"), ShouldBeTrue)
		So(strings.HasSuffix(name, ".pdf"), ShouldBeTrue)
	})
}
