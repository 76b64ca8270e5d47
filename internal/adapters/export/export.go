// Package export renders a stored DLOM calculation as a spreadsheet or PDF.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/matthewwoop/tokenvesting-mvp/internal/domain/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Supported formats.
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// Content types of the rendered documents.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

const (
	summarySheet = "summary"
	eventsSheet  = "events"
	dateLayout   = "2006-01-02"
)

// Render builds the document for format and returns it with its content type.
func Render(format string, schedule *model.VestingSchedule, calc *model.Calculation) ([]byte, string, error) {
	switch format {
	case FormatXLSX:
		b, err := BuildCalculationXLSX(schedule, calc)
		return b, ContentTypeXLSX, err
	case FormatPDF:
		b, err := BuildCalculationPDF(schedule, calc)
		return b, ContentTypePDF, err
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Filename is the suggested download name for a calculation.
func Filename(calc *model.Calculation, format string) string {
	return fmt.Sprintf("dlom-%s-%s.%s", calc.AsOf.UTC().Format(dateLayout), calc.ID.String()[:8], format)
}

func money(v float64) float64    { return decimal.NewFromFloat(v).Round(2).InexactFloat64() }
func percent(v float64) float64  { return decimal.NewFromFloat(v).Round(4).InexactFloat64() }
func discount(v float64) float64 { return decimal.NewFromFloat(v).Round(6).InexactFloat64() }

type summaryRow struct {
	label string
	value any
}

func summary(schedule *model.VestingSchedule, calc *model.Calculation) []summaryRow {
	r := calc.Result
	return []summaryRow{
		{"Schedule", schedule.Name},
		{"Schedule ID", schedule.ID.String()},
		{"Calculation ID", calc.ID.String()},
		{"As of", calc.AsOf.UTC().Format(time.RFC3339)},
		{"Run at", calc.RunAt.UTC().Format(time.RFC3339)},
		{"Symbol", calc.Symbol},
		{"Spot (USD)", money(calc.Market.Spot)},
		{"Volatility", percent(calc.Market.Volatility)},
		{"Risk-free rate", percent(calc.Market.RiskFreeRate)},
		{"Total quantity", schedule.TotalQuantity.InexactFloat64()},
		{"Total unlocked", r.TotalUnlocked},
		{"Total locked", r.TotalLocked},
		{"Discount (%)", percent(r.DiscountPercent)},
		{"Discounted value (USD)", money(r.DiscountedValue)},
		{"Amount-weighted discount (%)", percent(r.Alternatives.AmountWeightedDiscountPercent)},
		{"Chronological-last discount (%)", percent(r.Alternatives.ChronologicalLastDiscountPercent)},
	}
}

// BuildCalculationXLSX renders a workbook with a summary and a per-event sheet.
func BuildCalculationXLSX(schedule *model.VestingSchedule, calc *model.Calculation) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(eventsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "DLOM Calculation")
	for i, row := range summary(schedule, calc) {
		n := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", n), row.label)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", n), row.value)
	}

	header := []any{"#", "Unlock date", "Amount", "Premium (USD)", "Discount"}
	if err := f.SetSheetRow(eventsSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, ev := range calc.Result.PerEvent {
		row := []any{i + 1, ev.Date.UTC().Format(dateLayout), ev.UnlockAmount, money(ev.Premium), discount(ev.Discount)}
		if err := f.SetSheetRow(eventsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildCalculationPDF renders a one-document summary with a per-event table.
func BuildCalculationPDF(schedule *model.VestingSchedule, calc *model.Calculation) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "DLOM Calculation")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	for _, row := range summary(schedule, calc) {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %v", row.label, row.value))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(12, 6, "#", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Unlock date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Premium (USD)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Discount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for i, ev := range calc.Result.PerEvent {
		pdf.CellFormat(12, 6, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, ev.Date.UTC().Format(dateLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, decimal.NewFromFloat(ev.UnlockAmount).String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, decimal.NewFromFloat(ev.Premium).StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, decimal.NewFromFloat(ev.Discount).StringFixed(6), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
