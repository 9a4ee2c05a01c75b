package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "superstore"

// Metrics owns a private Prometheus registry with the dashboard's collectors.
// It satisfies the load observer of the dataset cache and the recorder of
// the dashboard service.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	loads        *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec
	renders      *prometheus.CounterVec
	renderTime   prometheus.Histogram
	forecasts    *prometheus.CounterVec
	exportBytes  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_loads_total",
			Help:      "Dataset lookups by source (memory, snapshot, file).",
		}, []string{"source"}),
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_load_duration_seconds",
			Help:      "Time to obtain the dataset by source.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"source"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Dashboard renders by outcome.",
		}, []string{"outcome"}),
		renderTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time to filter, aggregate and forecast one selection.",
			Buckets:   prometheus.DefBuckets,
		}),
		forecasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_total",
			Help:      "Forecast attempts by status.",
		}, []string{"status"}),
		exportBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_bytes_total",
			Help:      "Bytes of exported data by format.",
		}, []string{"format"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.loads,
		m.loadDuration,
		m.renders,
		m.renderTime,
		m.forecasts,
		m.exportBytes,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) ObserveLoad(source string, d time.Duration) {
	m.loads.WithLabelValues(source).Inc()
	m.loadDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) ObserveRender(outcome string, d time.Duration) {
	m.renders.WithLabelValues(outcome).Inc()
	m.renderTime.Observe(d.Seconds())
}

func (m *Metrics) ObserveForecast(status string) {
	m.forecasts.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveExport(format string, size int) {
	m.exportBytes.WithLabelValues(format).Add(float64(size))
}
