package service

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/Hizashii/money/model"
)

func TestBuildReportSums(t *testing.T) {
	report, err := BuildReport([]model.Invoice{
		{Vendor: "A", Date: "1/1/2024", Total: "100.00", VAT: "20.00"},
		{Vendor: "B", Date: model.Missing, Total: model.Missing, VAT: "5.00"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(report.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(report.Rows))
	}
	if report.Rows[0].Index != 1 || report.Rows[1].Index != 2 {
		t.Errorf("Expected 1-based indexes, got %d and %d", report.Rows[0].Index, report.Rows[1].Index)
	}
	if report.Summary == nil {
		t.Fatal("Expected a summary")
	}
	if report.Summary.Total != "100.00" {
		t.Errorf("Expected total '100.00', got '%s'", report.Summary.Total)
	}
	if report.Summary.VAT != "25.00" {
		t.Errorf("Expected VAT '25.00', got '%s'", report.Summary.VAT)
	}
}

func TestBuildReportThousandsSeparators(t *testing.T) {
	report, err := BuildReport([]model.Invoice{
		{Total: "1,234.56", VAT: "246.91"},
		{Total: "10,000", VAT: "0.10"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if report.Summary.Total != "11,234.56" {
		t.Errorf("Expected total '11,234.56', got '%s'", report.Summary.Total)
	}
	if report.Summary.VAT != "247.01" {
		t.Errorf("Expected VAT '247.01', got '%s'", report.Summary.VAT)
	}
}

func TestFormatAmountKeepsPrecision(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0", "0.00"},
		{"12.5", "12.50"},
		{"999.999", "1,000.00"},
		{"1234567.891", "1,234,567.89"},
		{"10000000000000000.01", "10,000,000,000,000,000.01"},
		{"-1234.5", "-1,234.50"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := formatAmount(decimal.RequireFromString(tt.input)); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestBuildReportLargeSumIsExact(t *testing.T) {
	report, err := BuildReport([]model.Invoice{
		{Total: "10,000,000,000,000,000.00", VAT: model.Missing},
		{Total: "0.01", VAT: model.Missing},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.Summary.Total != "10,000,000,000,000,000.01" {
		t.Errorf("Expected exact total, got '%s'", report.Summary.Total)
	}
}

func TestBuildReportEmpty(t *testing.T) {
	report, err := BuildReport(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !reflect.DeepEqual(report.Header, []string{"#", "Vendor", "Date", "Total", "VAT"}) {
		t.Errorf("Unexpected header %v", report.Header)
	}
	if len(report.Rows) != 0 {
		t.Errorf("Expected no rows, got %d", len(report.Rows))
	}
	if report.Summary != nil {
		t.Errorf("Expected no summary, got %+v", report.Summary)
	}
}

func TestBuildReportAllMissing(t *testing.T) {
	report, err := BuildReport([]model.Invoice{model.EmptyInvoice("scan.pdf")})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if report.Summary == nil {
		t.Fatal("Expected a summary")
	}
	if report.Summary.Total != "0.00" || report.Summary.VAT != "0.00" {
		t.Errorf("Expected zero sums, got %+v", report.Summary)
	}
}

func TestBuildReportNonNumericIsFatal(t *testing.T) {
	tests := []struct {
		name string
		inv  model.Invoice
	}{
		{"percentage vat", model.Invoice{Total: "100.00", VAT: "20%"}},
		{"text total", model.Invoice{Total: "about ten", VAT: model.Missing}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := BuildReport([]model.Invoice{{Total: "1.00", VAT: "1.00"}, tt.inv})
			if !errors.Is(err, ErrNotNumeric) {
				t.Errorf("Expected ErrNotNumeric, got %v", err)
			}
			if report != nil {
				t.Errorf("Expected no report, got %+v", report)
			}
		})
	}
}

func openReport(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestReportXLSX(t *testing.T) {
	report, err := BuildReport([]model.Invoice{
		{Vendor: "Acme Corp", Date: "12/03/2024", Total: "100.00", VAT: "20.00"},
		{Vendor: "Globex", Date: model.Missing, Total: model.Missing, VAT: "5.00"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, err := report.XLSX()
	if err != nil {
		t.Fatalf("Failed to render workbook: %v", err)
	}
	f := openReport(t, data)

	if sheets := f.GetSheetList(); !reflect.DeepEqual(sheets, []string{"Invoices"}) {
		t.Errorf("Expected a single Invoices sheet, got %v", sheets)
	}

	cells := map[string]string{
		"A1": "#", "B1": "Vendor", "C1": "Date", "D1": "Total", "E1": "VAT",
		"A2": "1", "B2": "Acme Corp", "D2": "100.00",
		"A3": "2", "B3": "Globex", "D3": model.Missing,
		"C4": "",
		"C5": "Totals:", "D5": "100.00", "E5": "25.00",
	}
	for cell, want := range cells {
		got, err := f.GetCellValue("Invoices", cell)
		if err != nil {
			t.Fatalf("Failed to read %s: %v", cell, err)
		}
		if got != want {
			t.Errorf("Expected %s to be '%s', got '%s'", cell, want, got)
		}
	}

	width, err := f.GetColWidth("Invoices", "B")
	if err != nil {
		t.Fatalf("Failed to read column width: %v", err)
	}
	if width != 30 {
		t.Errorf("Expected vendor column width 30, got %v", width)
	}
}

func TestReportXLSXHeaderOnly(t *testing.T) {
	report, err := BuildReport(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, err := report.XLSX()
	if err != nil {
		t.Fatalf("Failed to render workbook: %v", err)
	}
	rows, err := openReport(t, data).GetRows("Invoices")
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}
	if len(rows) != 1 || !reflect.DeepEqual(rows[0], []string{"#", "Vendor", "Date", "Total", "VAT"}) {
		t.Errorf("Expected only the header row, got %v", rows)
	}
}

func TestReportXLSXRejectsOversizedHeader(t *testing.T) {
	header := make([]string, excelize.MaxColumns+1)
	for i := range header {
		header[i] = "x"
	}
	report := &Report{Header: header}

	if _, err := report.XLSX(); err == nil {
		t.Error("Expected an error for a header wider than the sheet")
	}
}
