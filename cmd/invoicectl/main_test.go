package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Hizashii/money/model"
)

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("INVOICE_PDF", "")
	t.Setenv("GEMINI_BASE_URL", "")
	return dir
}

func TestResolvePDFPath(t *testing.T) {
	t.Setenv("INVOICE_PDF", "")
	assert.Equal(t, "invoice.pdf", resolvePDFPath(""))

	t.Setenv("INVOICE_PDF", "/tmp/from-env.pdf")
	assert.Equal(t, "/tmp/from-env.pdf", resolvePDFPath(""))
	assert.Equal(t, "flag.pdf", resolvePDFPath("flag.pdf"))
}

func TestAIMissingFile(t *testing.T) {
	isolate(t)

	stdout, stderr, err := runCommand(t, "ai")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errReported))
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Set INVOICE_PDF or place invoice.pdf in the current directory.")
}

func TestAINoCredential(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoice.pdf"), []byte("%PDF-1.4"), 0o600))

	_, stderr, err := runCommand(t, "ai")

	require.Error(t, err)
	assert.Contains(t, stderr, "Extraction failed. Ensure GEMINI_API_KEY is set.")
	assert.Contains(t, stderr, "no_credential")
}

func TestAISuccess(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nordic.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"` +
			"```json\\n{\\\"vendor_name\\\": \\\"Nordic Supplies ApS\\\", \\\"total\\\": 125}\\n```" +
			`"}]}}]}`))
	}))
	defer server.Close()
	t.Setenv("GEMINI_BASE_URL", server.URL)
	t.Setenv("GEMINI_API_KEY", "test-key")

	stdout, _, err := runCommand(t, "ai", "--file", path)
	require.NoError(t, err)

	var inv model.ExtendedInvoice
	require.NoError(t, json.Unmarshal([]byte(stdout), &inv))
	assert.Equal(t, model.FlexString("Nordic Supplies ApS"), inv.VendorName)
	assert.Equal(t, model.FlexString("125"), inv.Total)
	assert.Equal(t, model.FlexString(model.Missing), inv.IBAN)
}

func TestExtractWritesJSONAndReport(t *testing.T) {
	dir := isolate(t)
	pdf := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("not really a pdf"), 0o600))
	out := filepath.Join(dir, "report.xlsx")

	stdout, _, err := runCommand(t, "extract", pdf, "--xlsx", out)
	require.NoError(t, err)

	var invoices []model.Invoice
	require.NoError(t, json.Unmarshal([]byte(stdout), &invoices))
	require.Len(t, invoices, 1)
	assert.Equal(t, model.EmptyInvoice("scan.pdf"), invoices[0])

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Invoices", "B2")
	require.NoError(t, err)
	assert.Equal(t, "scan.pdf", v)
}

func TestExtractAIFallback(t *testing.T) {
	dir := isolate(t)
	pdf := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("not really a pdf"), 0o600))

	stdout, _, err := runCommand(t, "extract", "--ai", pdf)
	require.NoError(t, err)

	var invoices []model.Invoice
	require.NoError(t, json.Unmarshal([]byte(stdout), &invoices))
	require.Len(t, invoices, 1)
	assert.Equal(t, "scan.pdf", invoices[0].Vendor)
}

func TestExtractMissingFile(t *testing.T) {
	isolate(t)

	_, _, err := runCommand(t, "extract", "nope.pdf")
	require.Error(t, err)
	assert.False(t, errors.Is(err, errReported))
}

func TestExtractRequiresArgs(t *testing.T) {
	isolate(t)

	_, _, err := runCommand(t, "extract")
	assert.Error(t, err)
}

func TestAnalyzeUnreadablePDF(t *testing.T) {
	dir := isolate(t)
	pdf := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("not really a pdf"), 0o600))

	stdout, _, err := runCommand(t, "analyze", pdf)
	require.NoError(t, err)

	var results []model.Extraction
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "scan.pdf", results[0].Filename)
	assert.Equal(t, model.UnknownVendor, results[0].Sender.CompanyName)
	assert.Equal(t, model.StatusHighRisk, results[0].Legitimacy.Status)
	assert.Contains(t, results[0].Legitimacy.Issues, "Missing invoice number")
}

func TestAnalyzeRequiresArgs(t *testing.T) {
	isolate(t)

	_, _, err := runCommand(t, "analyze")
	assert.Error(t, err)
}
