package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "log_onboarding"

// MetricsCollector owns the Prometheus metrics of the service. A nil collector
// records nothing, so the core can run without one.
type MetricsCollector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	detections         *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	fieldsExtracted    *prometheus.CounterVec
	extractionWarnings *prometheus.CounterVec

	regexApplications *prometheus.CounterVec
	regexDuration     prometheus.Histogram

	cacheOperations *prometheus.CounterVec
	sessionUpdates  *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on its own registry, with the Go and
// process collectors registered
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "detections_total",
			Help:      "Samples classified per format",
		}, []string{"format"}),
		extractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "duration_seconds",
			Help:      "Detection, extraction and synthesis latency per format",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"format"}),
		fieldsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "fields_total",
			Help:      "Fields produced per provenance",
		}, []string{"source"}),
		extractionWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "warnings_total",
			Help:      "Soft extraction failures per format",
		}, []string{"format"}),

		regexApplications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regex",
			Name:      "applications_total",
			Help:      "Custom and AI regex runs by outcome",
		}, []string{"kind", "outcome"}),
		regexDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "regex",
			Name:      "duration_seconds",
			Help:      "Custom regex execution latency",
			Buckets:   []float64{0.0005, 0.001, 0.01, 0.1, 0.5, 1, 2, 5},
		}),

		cacheOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Extraction cache lookups by result",
		}, []string{"result"}),
		sessionUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "updates_total",
			Help:      "Session field merges per provenance",
		}, []string{"source"}),
	}

	mc.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		mc.httpRequests, mc.httpDuration,
		mc.detections, mc.extractionDuration, mc.fieldsExtracted, mc.extractionWarnings,
		mc.regexApplications, mc.regexDuration,
		mc.cacheOperations, mc.sessionUpdates,
	)
	return mc
}

// Handler serves the registry in the Prometheus exposition format
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// RecordHTTPRequest records an HTTP request metric
func (mc *MetricsCollector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.httpRequests.WithLabelValues(method, route, statusLabel(statusCode)).Inc()
	mc.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordExtraction records one extraction pass
func (mc *MetricsCollector) RecordExtraction(format string, fieldCount, warnings int, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.detections.WithLabelValues(format).Inc()
	mc.extractionDuration.WithLabelValues(format).Observe(duration.Seconds())
	mc.fieldsExtracted.WithLabelValues("auto_detect").Add(float64(fieldCount))
	if warnings > 0 {
		mc.extractionWarnings.WithLabelValues(format).Add(float64(warnings))
	}
}

// RecordRegex records a custom or AI regex run; outcome is matched, no_match,
// invalid or timeout
func (mc *MetricsCollector) RecordRegex(kind, outcome string, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.regexApplications.WithLabelValues(kind, outcome).Inc()
	mc.regexDuration.Observe(duration.Seconds())
}

// RecordCacheOperation records a cache hit or miss
func (mc *MetricsCollector) RecordCacheOperation(hit bool) {
	if mc == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	mc.cacheOperations.WithLabelValues(result).Inc()
}

// RecordSessionUpdate records a merge into a session field list
func (mc *MetricsCollector) RecordSessionUpdate(source string, fieldCount int) {
	if mc == nil {
		return
	}
	mc.sessionUpdates.WithLabelValues(source).Inc()
	if source != "auto_detect" {
		mc.fieldsExtracted.WithLabelValues(source).Add(float64(fieldCount))
	}
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
