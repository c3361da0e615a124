package service

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/Hizashii/money/model"
)

const reportSheet = "Invoices"

// ErrNotNumeric fails an export when a stored amount cannot be summed.
var ErrNotNumeric = errors.New("value is not numeric")

// ReportHeader is the fixed column set of the export.
var ReportHeader = []string{"#", "Vendor", "Date", "Total", "VAT"}

var reportColWidths = []float64{6, 30, 14, 14, 14}

type ReportRow struct {
	Index   int
	Invoice model.Invoice
}

// ReportSummary holds formatted sums, e.g. "1,234.50".
type ReportSummary struct {
	Total string
	VAT   string
}

type Report struct {
	Header  []string
	Rows    []ReportRow
	Summary *ReportSummary // nil when there are no rows
}

// BuildReport lays out invoices in store order and sums their totals and VAT.
// Missing values are skipped; any other value that does not parse as a
// number fails the whole report.
func BuildReport(invoices []model.Invoice) (*Report, error) {
	report := &Report{
		Header: ReportHeader,
		Rows:   make([]ReportRow, 0, len(invoices)),
	}
	if len(invoices) == 0 {
		return report, nil
	}

	totalSum, vatSum := decimal.Zero, decimal.Zero
	for i, inv := range invoices {
		report.Rows = append(report.Rows, ReportRow{Index: i + 1, Invoice: inv})

		total, err := parseAmount(inv.Total)
		if err != nil {
			return nil, fmt.Errorf("row %d total: %w", i+1, err)
		}
		vat, err := parseAmount(inv.VAT)
		if err != nil {
			return nil, fmt.Errorf("row %d vat: %w", i+1, err)
		}
		totalSum = totalSum.Add(total)
		vatSum = vatSum.Add(vat)
	}

	report.Summary = &ReportSummary{
		Total: formatAmount(totalSum),
		VAT:   formatAmount(vatSum),
	}
	return report, nil
}

// parseAmount strips thousands separators. Missing and blank values count as zero.
func parseAmount(v string) (decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	if v == model.Missing || v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, v)
	}
	return d, nil
}

// formatAmount renders d with two decimals and thousands separators,
// without passing through float64.
func formatAmount(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	n, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return sign + fixed
	}
	return sign + humanize.BigComma(n) + "." + frac
}

// XLSX renders the report as a single-sheet workbook.
func (r *Report) XLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), reportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"1E3A5F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{Border: thinBorder()})
	if err != nil {
		return nil, fmt.Errorf("cell style: %w", err)
	}
	summaryStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("summary style: %w", err)
	}

	var werr error
	write := func(col, row int, v any) {
		if werr != nil {
			return
		}
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			werr = err
			return
		}
		werr = f.SetCellValue(reportSheet, cell, v)
	}
	styleRow := func(row, fromCol, toCol, style int) {
		if werr != nil {
			return
		}
		first, err := excelize.CoordinatesToCellName(fromCol, row)
		if err != nil {
			werr = err
			return
		}
		last, err := excelize.CoordinatesToCellName(toCol, row)
		if err != nil {
			werr = err
			return
		}
		werr = f.SetCellStyle(reportSheet, first, last, style)
	}

	for i, h := range r.Header {
		write(i+1, 1, h)
	}
	styleRow(1, 1, len(r.Header), headerStyle)

	row := 2
	for _, rr := range r.Rows {
		write(1, row, rr.Index)
		write(2, row, rr.Invoice.Vendor)
		write(3, row, rr.Invoice.Date)
		write(4, row, rr.Invoice.Total)
		write(5, row, rr.Invoice.VAT)
		styleRow(row, 1, len(r.Header), cellStyle)
		row++
	}

	if r.Summary != nil {
		// one blank row between the records and the totals
		row++
		write(3, row, "Totals:")
		write(4, row, r.Summary.Total)
		write(5, row, r.Summary.VAT)
		styleRow(row, 3, 5, summaryStyle)
	}
	if werr != nil {
		return nil, fmt.Errorf("xlsx cells: %w", werr)
	}

	for i, w := range reportColWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(reportSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func thinBorder() []excelize.Border {
	sides := []string{"left", "right", "top", "bottom"}
	borders := make([]excelize.Border, len(sides))
	for i, s := range sides {
		borders[i] = excelize.Border{Type: s, Color: "000000", Style: 1}
	}
	return borders
}
