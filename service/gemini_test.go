package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/Hizashii/money/config"
	"github.com/Hizashii/money/model"
)

const invoiceJSON = `{
  "vendor_name": "Nordic Supplies ApS",
  "vendor_cvr": "DK12345678",
  "invoice_number": "INV-7",
  "issue_date": "2024-03-01",
  "due_date": "2024-03-31",
  "line_items": [{"description": "Paper", "quantity": 2, "unit_price": "50.00"}],
  "subtotal": "100.00",
  "vat_amount": "25.00",
  "total": "125.00",
  "currency": "DKK",
  "iban": "",
  "beneficiary_name": "—",
  "bank_name": "—",
  "swift_bic": "—"
}`

func clearAPIKeys(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
}

func geminiReply(t *testing.T, w http.ResponseWriter, parts ...string) {
	t.Helper()
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = map[string]any{"text": p}
	}
	resp := map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": out}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Errorf("Failed to write reply: %v", err)
	}
}

func newTestAIExtractor(baseURL, key string) *AIExtractor {
	return NewAIExtractor(&config.GeminiConfig{
		APIKey:         key,
		Model:          "gemini-test",
		BaseURL:        baseURL,
		TimeoutSeconds: 5,
	})
}

func expectUnavailable(t *testing.T, err error, reason UnavailableReason) {
	t.Helper()
	if !errors.Is(err, ErrAIUnavailable) {
		t.Fatalf("Expected ErrAIUnavailable, got %v", err)
	}
	if got := ReasonOf(err); got != reason {
		t.Errorf("Expected reason %s, got %s", reason, got)
	}
}

func TestParseModelResponseFencedEqualsPlain(t *testing.T) {
	plain, err := ParseModelResponse(invoiceJSON)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, wrapped := range []string{
		"```json\n" + invoiceJSON + "\n```",
		"```\n" + invoiceJSON + "\n```",
		"Here you go:\n```json" + invoiceJSON + "```\n",
	} {
		got, err := ParseModelResponse(wrapped)
		if err != nil {
			t.Fatalf("Unexpected error for %q: %v", wrapped, err)
		}
		if !reflect.DeepEqual(plain, got) {
			t.Errorf("Expected fenced response to equal plain one, got %+v", got)
		}
	}

	if plain.VendorName != "Nordic Supplies ApS" {
		t.Errorf("Expected vendor 'Nordic Supplies ApS', got '%s'", plain.VendorName)
	}
	if plain.IBAN != model.Missing {
		t.Errorf("Expected blank IBAN to become the missing sentinel, got '%s'", plain.IBAN)
	}
	if len(plain.LineItems) != 1 || plain.LineItems[0].Quantity != "2" {
		t.Errorf("Expected one line item with quantity '2', got %+v", plain.LineItems)
	}
}

func TestParseModelResponseMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"empty fence", "```json\n```"},
		{"prose", "not json"},
		{"truncated", "```json\n{\"vendor_name\": \n```"},
		{"null", "null"},
		{"fenced null", "```json\nnull\n```"},
		{"array", `[{"vendor_name": "Acme"}]`},
		{"string", `"Acme"`},
		{"number", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := ParseModelResponse(tt.text)
			if inv != nil {
				t.Errorf("Expected no record, got %+v", inv)
			}
			expectUnavailable(t, err, ReasonMalformedResponse)
		})
	}
}

func TestAIExtractorNoCredential(t *testing.T) {
	clearAPIKeys(t)
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	inv, err := newTestAIExtractor(server.URL, "").Extract(context.Background(), []byte("%PDF"), "a.pdf")

	if inv != nil {
		t.Errorf("Expected no record, got %+v", inv)
	}
	expectUnavailable(t, err, ReasonNoCredential)
	if called {
		t.Error("Expected no remote call without a credential")
	}
}

func TestAIExtractorClientUnavailable(t *testing.T) {
	var nilExtractor *AIExtractor
	_, err := nilExtractor.Extract(context.Background(), nil, "")
	expectUnavailable(t, err, ReasonClientUnavailable)

	_, err = NewAIExtractor(nil).Extract(context.Background(), nil, "")
	expectUnavailable(t, err, ReasonClientUnavailable)
}

func TestAIExtractorSuccess(t *testing.T) {
	clearAPIKeys(t)
	document := []byte("%PDF-1.4 fake")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "secret" {
			t.Errorf("Expected api key 'secret', got '%s'", got)
		}

		var req struct {
			Contents []struct {
				Parts []struct {
					InlineData *struct {
						MimeType string `json:"mime_type"`
						Data     string `json:"data"`
					} `json:"inline_data"`
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
			return
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 || req.Contents[0].Parts[0].InlineData == nil {
			t.Errorf("Expected one content with inline data and a prompt, got %+v", req)
			return
		}
		inline := req.Contents[0].Parts[0].InlineData
		if inline.MimeType != "application/pdf" {
			t.Errorf("Expected mime type application/pdf, got %s", inline.MimeType)
		}
		if inline.Data != base64.StdEncoding.EncodeToString(document) {
			t.Error("Expected the document to be sent base64 encoded")
		}
		if !strings.Contains(req.Contents[0].Parts[1].Text, "swift_bic") {
			t.Error("Expected the prompt to list swift_bic")
		}

		geminiReply(t, w, "```json\n", invoiceJSON, "\n```")
	}))
	defer server.Close()

	inv, err := newTestAIExtractor(server.URL, "secret").Extract(context.Background(), document, "a.pdf")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if inv.InvoiceNumber != "INV-7" {
		t.Errorf("Expected invoice number 'INV-7', got '%s'", inv.InvoiceNumber)
	}
	want := model.Invoice{Vendor: "Nordic Supplies ApS", Date: "2024-03-01", Total: "125.00", VAT: "25.00"}
	if got := inv.Summary(); got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestAIExtractorUsesEnvironmentKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "google-key" {
			t.Errorf("Expected api key 'google-key', got '%s'", got)
		}
		geminiReply(t, w, invoiceJSON)
	}))
	defer server.Close()

	if _, err := newTestAIExtractor(server.URL, "").Extract(context.Background(), []byte("%PDF"), "a.pdf"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestAIExtractorRemoteFailures(t *testing.T) {
	clearAPIKeys(t)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		reason  UnavailableReason
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
			},
			reason: ReasonRemoteError,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>"))
			},
			reason: ReasonMalformedResponse,
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"candidates":[]}`))
			},
			reason: ReasonMalformedResponse,
		},
		{
			name: "model prose",
			handler: func(w http.ResponseWriter, r *http.Request) {
				geminiReply(t, w, "I could not read this invoice.")
			},
			reason: ReasonMalformedResponse,
		},
		{
			name: "model null",
			handler: func(w http.ResponseWriter, r *http.Request) {
				geminiReply(t, w, "```json\nnull\n```")
			},
			reason: ReasonMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			inv, err := newTestAIExtractor(server.URL, "secret").Extract(context.Background(), []byte("%PDF"), "a.pdf")
			if inv != nil {
				t.Errorf("Expected no record, got %+v", inv)
			}
			expectUnavailable(t, err, tt.reason)
		})
	}
}

func TestAIExtractorUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestAIExtractor(url, "secret").Extract(context.Background(), []byte("%PDF"), "a.pdf")
	expectUnavailable(t, err, ReasonRemoteError)
}

func TestUnavailableErrorMessage(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{unavailable(ReasonRemoteError, errors.New("dial tcp: refused")), "ai extraction unavailable: remote_error: dial tcp: refused"},
		{unavailable(ReasonNoCredential, nil), "ai extraction unavailable: no_credential"},
	}
	for _, tt := range tests {
		if tt.err.Error() != tt.expected {
			t.Errorf("Expected '%s', got '%s'", tt.expected, tt.err.Error())
		}
	}
	if got := ReasonOf(errors.New("other")); got != "" {
		t.Errorf("Expected no reason for a plain error, got '%s'", got)
	}
}
