package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Hizashii/money/config"
	"github.com/Hizashii/money/model"
	"github.com/Hizashii/money/pkg/logger"
)

// ErrAIUnavailable is matched by every AI extraction failure.
var ErrAIUnavailable = errors.New("ai extraction unavailable")

type UnavailableReason string

const (
	ReasonClientUnavailable UnavailableReason = "client_unavailable"
	ReasonNoCredential      UnavailableReason = "no_credential"
	ReasonRemoteError       UnavailableReason = "remote_error"
	ReasonMalformedResponse UnavailableReason = "malformed_response"
)

// UnavailableError tags why the AI path produced no record.
type UnavailableError struct {
	Reason UnavailableReason
	Cause  error
}

func (e *UnavailableError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", ErrAIUnavailable, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", ErrAIUnavailable, e.Reason, e.Cause)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrAIUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// ReasonOf returns the tag of an AI failure, or "" for other errors.
func ReasonOf(err error) UnavailableReason {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue.Reason
	}
	return ""
}

func unavailable(reason UnavailableReason, cause error) error {
	return &UnavailableError{Reason: reason, Cause: cause}
}

const extractionPrompt = `You are an invoice data extractor. From this invoice PDF, extract the following fields and return ONLY valid JSON with no markdown or extra text:

{
  "vendor_name": "company name of the seller",
  "vendor_cvr": "company registration or tax ID number",
  "invoice_number": "invoice number",
  "issue_date": "issue date as written",
  "due_date": "due date as written",
  "line_items": [{"description": "item description", "quantity": "quantity", "unit_price": "price per unit"}],
  "subtotal": "amount before VAT",
  "vat_amount": "VAT amount",
  "total": "total amount due",
  "currency": "currency code",
  "iban": "IBAN",
  "beneficiary_name": "account holder name",
  "bank_name": "bank name",
  "swift_bic": "SWIFT/BIC code"
}

Use "—" for any value that is not present on the invoice. Return only the JSON object.`

// AIExtractor sends a document to the Gemini generateContent endpoint and
// decodes the model's JSON answer.
type AIExtractor struct {
	config     *config.GeminiConfig
	httpClient *http.Client
}

// NewAIExtractor returns an extractor that always reports
// ReasonClientUnavailable when cfg is nil.
func NewAIExtractor(cfg *config.GeminiConfig) *AIExtractor {
	if cfg == nil {
		return &AIExtractor{}
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AIExtractor{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type geminiPart struct {
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
	Text       string            `json:"text,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// apiKey prefers the configured key and falls back to the environment.
func (e *AIExtractor) apiKey() string {
	if k := strings.TrimSpace(e.config.APIKey); k != "" {
		return k
	}
	return config.GeminiAPIKeyFromEnv()
}

// Extract makes one blocking call per document. Every failure is an
// *UnavailableError matching ErrAIUnavailable.
func (e *AIExtractor) Extract(ctx context.Context, document []byte, filenameHint string) (*model.ExtendedInvoice, error) {
	if e == nil || e.config == nil || e.httpClient == nil {
		return nil, unavailable(ReasonClientUnavailable, nil)
	}
	key := e.apiKey()
	if key == "" {
		return nil, unavailable(ReasonNoCredential, nil)
	}

	log := logger.WithContext(ctx).With("req_id", uuid.New().String(), "file", filenameHint)
	start := time.Now()

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: "application/pdf", Data: document}},
				{Text: extractionPrompt},
			},
		}},
	})
	if err != nil {
		return nil, unavailable(ReasonClientUnavailable, fmt.Errorf("failed to marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(e.config.BaseURL, "/"), e.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, unavailable(ReasonRemoteError, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	log.Info("ai.extract.request", "model", e.config.Model, "bytes", len(document))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		log.Warn("ai.extract.send_error", "error", err)
		return nil, unavailable(ReasonRemoteError, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(ReasonRemoteError, fmt.Errorf("failed to read response: %w", err))
	}

	log.Info("ai.extract.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, unavailable(ReasonRemoteError, fmt.Errorf("gemini API status %d: %s", resp.StatusCode, truncateRunes(string(raw), 200)))
	}

	var gr geminiResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, unavailable(ReasonMalformedResponse, fmt.Errorf("failed to parse response: %w", err))
	}
	if len(gr.Candidates) == 0 {
		return nil, unavailable(ReasonMalformedResponse, errors.New("no candidates in response"))
	}

	var text strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	inv, err := ParseModelResponse(text.String())
	if err != nil {
		log.Warn("ai.extract.malformed", "error", err)
		return nil, err
	}
	return inv, nil
}

var fencedBlockRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ParseModelResponse decodes the model's text, unwrapping an optional
// ``` or ```json fenced block first. Only a JSON object is accepted.
func ParseModelResponse(text string) (*model.ExtendedInvoice, error) {
	text = strings.TrimSpace(text)
	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if text == "" {
		return nil, unavailable(ReasonMalformedResponse, errors.New("empty model response"))
	}
	// null, arrays and bare scalars would decode into an all-missing record
	if text[0] != '{' {
		return nil, unavailable(ReasonMalformedResponse, fmt.Errorf("model response is not a JSON object: %s", truncateRunes(text, 40)))
	}

	var inv model.ExtendedInvoice
	if err := json.Unmarshal([]byte(text), &inv); err != nil {
		return nil, unavailable(ReasonMalformedResponse, fmt.Errorf("failed to decode invoice json: %w", err))
	}
	inv.Normalize()
	return &inv, nil
}
