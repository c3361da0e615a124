package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	invoicesExtracted *prometheus.CounterVec
	invoicesAnalyzed  *prometheus.CounterVec
	uploadsSkipped    *prometheus.CounterVec
	aiUnavailable     *prometheus.CounterVec
	exports           *prometheus.CounterVec
	logins            *prometheus.CounterVec
	panics            *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invoicesExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoices_extracted_total",
			Help: "Invoices extracted, by engine.",
		}, []string{"engine"}),
		invoicesAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoices_analyzed_total",
			Help: "Detailed invoice analyses, by engine and legitimacy status.",
		}, []string{"engine", "status"}),
		uploadsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_uploads_skipped_total",
			Help: "Uploaded files not processed, by reason.",
		}, []string{"reason"}),
		aiUnavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_ai_unavailable_total",
			Help: "AI extraction attempts that returned no result, by reason.",
		}, []string{"reason"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_exports_total",
			Help: "Spreadsheet exports, by result.",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts, by result.",
		}, []string{"result"}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_panics_recovered_total",
			Help: "Handler panics turned into 500 responses, by route.",
		}, []string{"route"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.invoicesExtracted,
		m.invoicesAnalyzed,
		m.uploadsSkipped,
		m.aiUnavailable,
		m.exports,
		m.logins,
		m.panics,
		m.requestDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) InvoiceExtracted(engine string) {
	if m == nil {
		return
	}
	m.invoicesExtracted.WithLabelValues(engine).Inc()
}

func (m *Metrics) InvoiceAnalyzed(engine, status string) {
	if m == nil {
		return
	}
	m.invoicesAnalyzed.WithLabelValues(engine, status).Inc()
}

func (m *Metrics) UploadSkipped(reason string) {
	if m == nil {
		return
	}
	m.uploadsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) AIUnavailable(reason string) {
	if m == nil {
		return
	}
	m.aiUnavailable.WithLabelValues(reason).Inc()
}

func (m *Metrics) Export(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.exports.WithLabelValues(result).Inc()
}

// LoginAttempt counts a login by result.
func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) PanicRecovered(route string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(route).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
