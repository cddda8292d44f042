// Package metrics exposes refresh and HTTP metrics through Prometheus
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives pipeline and HTTP observations
type Recorder interface {
	ObserveAdapter(platform string, duration time.Duration, records int, failed bool)
	ObserveRefresh(duration time.Duration, live, offline, banned int, stale bool)
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	Handler() http.Handler
}

// Prometheus records metrics into its own registry
type Prometheus struct {
	registry        *prometheus.Registry
	adapterDuration *prometheus.HistogramVec
	adapterRecords  *prometheus.GaugeVec
	adapterFailures *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	refreshTotal    *prometheus.CounterVec
	streamers       *prometheus.GaugeVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New returns a Prometheus recorder when enabled, otherwise a no-op
func New(enabled bool) Recorder {
	if !enabled {
		return Noop{}
	}
	return NewPrometheus(prometheus.NewRegistry())
}

// NewPrometheus registers all collectors on reg
func NewPrometheus(reg *prometheus.Registry) *Prometheus {
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewGoCollector())

	return &Prometheus{
		registry: reg,
		adapterDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wil_adapter_fetch_duration_seconds",
			Help:    "Duration of one adapter fetch in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),

		adapterRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wil_adapter_records",
			Help: "Records returned by the last fetch of each adapter",
		}, []string{"platform"}),

		adapterFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wil_adapter_failures_total",
			Help: "Total number of failed adapter fetches",
		}, []string{"platform"}),

		refreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "wil_refresh_duration_seconds",
			Help:    "Duration of a full refresh cycle in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		refreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wil_refresh_total",
			Help: "Total number of refresh cycles by outcome",
		}, []string{"outcome"}),

		streamers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wil_streamers",
			Help: "Streamers per partition in the latest snapshot",
		}, []string{"partition"}),

		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wil_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wil_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

func (m *Prometheus) ObserveAdapter(platform string, duration time.Duration, records int, failed bool) {
	m.adapterDuration.WithLabelValues(platform).Observe(duration.Seconds())
	m.adapterRecords.WithLabelValues(platform).Set(float64(records))
	if failed {
		m.adapterFailures.WithLabelValues(platform).Inc()
	}
}

func (m *Prometheus) ObserveRefresh(duration time.Duration, live, offline, banned int, stale bool) {
	m.refreshDuration.Observe(duration.Seconds())
	outcome := "ok"
	if stale {
		outcome = "stale"
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
	if stale {
		return
	}
	m.streamers.WithLabelValues("live").Set(float64(live))
	m.streamers.WithLabelValues("offline").Set(float64(offline))
	m.streamers.WithLabelValues("banned").Set(float64(banned))
}

func (m *Prometheus) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *Prometheus) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func httpStatusBucket(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Noop discards all observations
type Noop struct{}

func (Noop) ObserveAdapter(string, time.Duration, int, bool)   {}
func (Noop) ObserveRefresh(time.Duration, int, int, int, bool) {}
func (Noop) IncRequestsTotal(string, int)                      {}
func (Noop) ObserveRequestDuration(string, time.Duration)      {}
func (Noop) Handler() http.Handler                             { return http.NotFoundHandler() }
