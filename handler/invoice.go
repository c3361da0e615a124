package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Hizashii/money/model"
	"github.com/Hizashii/money/pkg/logger"
	"github.com/Hizashii/money/pkg/metrics"
	"github.com/Hizashii/money/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	engineHeuristic = "heuristic"
	engineAI        = "ai"
)

// AIExtractor is satisfied by *service.AIExtractor.
type AIExtractor interface {
	Extract(ctx context.Context, document []byte, filenameHint string) (*model.ExtendedInvoice, error)
}

type InvoiceHandler struct {
	store        *service.InvoiceStore
	decoder      service.TextDecoder
	ai           AIExtractor
	metrics      *metrics.Metrics
	maxFileBytes int64
}

// NewInvoiceHandler wires the upload and export endpoints. ai and m may be
// nil; maxFileBytes <= 0 disables the size cap.
func NewInvoiceHandler(store *service.InvoiceStore, decoder service.TextDecoder, ai AIExtractor, m *metrics.Metrics, maxFileBytes int64) *InvoiceHandler {
	return &InvoiceHandler{
		store:        store,
		decoder:      decoder,
		ai:           ai,
		metrics:      m,
		maxFileBytes: maxFileBytes,
	}
}

type pdfUpload struct {
	name string
	data []byte
}

// uploads reads the "files" field, skipping anything that is not a PDF, is
// over the size cap or cannot be read. ok is false when nothing was sent.
func (h *InvoiceHandler) uploads(c *gin.Context) (files []pdfUpload, ok bool) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		return nil, false
	}

	log := logger.WithContext(c.Request.Context())
	for _, fh := range form.File["files"] {
		if strings.ToLower(filepath.Ext(fh.Filename)) != ".pdf" {
			log.Debug("upload skipped", "file", fh.Filename, "reason", "extension")
			h.metrics.UploadSkipped("extension")
			continue
		}
		if h.maxFileBytes > 0 && fh.Size > h.maxFileBytes {
			log.Warn("upload skipped", "file", fh.Filename, "reason", "size", "size", fh.Size, "max", h.maxFileBytes)
			h.metrics.UploadSkipped("size")
			continue
		}

		data, err := readUpload(fh)
		if err != nil {
			log.Warn("upload skipped", "file", fh.Filename, "reason", "read_error", "error", err)
			h.metrics.UploadSkipped("read_error")
			continue
		}
		files = append(files, pdfUpload{name: fh.Filename, data: data})
	}
	return files, true
}

// Extract handles a multi-file upload. Files that are not PDFs are skipped
// silently; the response holds the records created by this request only.
func (h *InvoiceHandler) Extract(c *gin.Context) {
	files, ok := h.uploads(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}

	ctx := c.Request.Context()
	useAI := strings.EqualFold(c.Query("engine"), engineAI)

	results := make([]model.Invoice, 0, len(files))
	for _, f := range files {
		inv, engine := h.extractOne(ctx, f.data, f.name, useAI)
		h.store.Append(inv)
		h.metrics.InvoiceExtracted(engine)
		logger.Info(ctx, "invoice extracted", "file", f.name, "engine", engine, "vendor", inv.Vendor)

		results = append(results, inv)
	}

	c.JSON(http.StatusOK, results)
}

// Analyze returns the detailed extraction and risk assessment of each
// uploaded PDF. Nothing is stored.
func (h *InvoiceHandler) Analyze(c *gin.Context) {
	files, ok := h.uploads(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}

	ctx := c.Request.Context()
	useAI := strings.EqualFold(c.Query("engine"), engineAI)

	results := make([]model.Extraction, 0, len(files))
	for _, f := range files {
		ex, engine := h.analyzeOne(ctx, f.data, f.name, useAI)
		h.metrics.InvoiceAnalyzed(engine, string(ex.Legitimacy.Status))
		logger.Info(ctx, "invoice analyzed", "file", f.name, "engine", engine,
			"status", ex.Legitimacy.Status, "score", ex.Legitimacy.Score)

		results = append(results, ex)
	}

	c.JSON(http.StatusOK, results)
}

// extractOne tries the AI path when asked and falls back to the text
// heuristics when it is unavailable.
func (h *InvoiceHandler) extractOne(ctx context.Context, data []byte, filename string, useAI bool) (model.Invoice, string) {
	if ext := h.tryAI(ctx, data, filename, useAI); ext != nil {
		return ext.Summary(), engineAI
	}
	return service.ExtractInvoice(h.decode(ctx, data, filename), filename), engineHeuristic
}

func (h *InvoiceHandler) analyzeOne(ctx context.Context, data []byte, filename string, useAI bool) (model.Extraction, string) {
	if ext := h.tryAI(ctx, data, filename, useAI); ext != nil {
		return service.FromAI(ext, filename), engineAI
	}
	return service.AnalyzeInvoice(h.decode(ctx, data, filename), filename), engineHeuristic
}

// tryAI returns nil when AI was not requested or is unavailable.
func (h *InvoiceHandler) tryAI(ctx context.Context, data []byte, filename string, useAI bool) *model.ExtendedInvoice {
	if !useAI || h.ai == nil {
		return nil
	}
	ext, err := h.ai.Extract(ctx, data, filename)
	if err == nil {
		return ext
	}
	reason := string(service.ReasonOf(err))
	logger.Warn(ctx, "ai extraction unavailable, using heuristics", "file", filename, "reason", reason, "error", err)
	h.metrics.AIUnavailable(reason)
	return nil
}

// decode returns empty text when the PDF has no readable text layer.
func (h *InvoiceHandler) decode(ctx context.Context, data []byte, filename string) string {
	text, err := h.decoder.DecodeText(data)
	if err != nil {
		logger.Warn(ctx, "pdf text decode failed", "file", filename, "error", err)
		return ""
	}
	return text
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// List returns every stored invoice in insertion order.
func (h *InvoiceHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.List())
}

func (h *InvoiceHandler) Clear(c *gin.Context) {
	h.store.Clear()
	logger.Info(c.Request.Context(), "invoice store cleared")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Excel streams the store as invoices.xlsx. A non-numeric amount fails the
// whole export.
func (h *InvoiceHandler) Excel(c *gin.Context) {
	report, err := service.BuildReport(h.store.List())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to build report", "error", err)
		h.metrics.Export(false)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report: " + err.Error()})
		return
	}

	data, err := report.XLSX()
	if err != nil {
		logger.Error(c.Request.Context(), "failed to render xlsx", "error", err)
		h.metrics.Export(false)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render spreadsheet"})
		return
	}

	h.metrics.Export(true)
	c.Header("Content-Disposition", "attachment; filename=invoices.xlsx")
	c.Data(http.StatusOK, xlsxContentType, data)
}
