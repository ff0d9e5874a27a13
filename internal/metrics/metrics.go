// Package metrics exposes Prometheus collectors for the gate, the provider client and HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maazshahbaz/ai-humanizer/internal/model"
	"github.com/maazshahbaz/ai-humanizer/internal/service"
)

// Metrics holds all collectors on a dedicated registry.
type Metrics struct {
	reg *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	GateRequests   *prometheus.CounterVec
	CreditsCharged prometheus.Counter

	// Provider metrics
	ProviderJobSeconds *prometheus.HistogramVec
	ProviderPolls      prometheus.Histogram
}

// New creates a registry with Go/process collectors and all application metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"method", "route"},
		),
		GateRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "humanizer_requests_total",
				Help: "Humanize requests by track and final gate state",
			},
			[]string{"track", "outcome"}, // guest|registered, settled|rejected|failed
		),
		CreditsCharged: f.NewCounter(prometheus.CounterOpts{
			Name: "humanizer_credits_charged_total",
			Help: "Credits debited from registered balances",
		}),
		ProviderJobSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "humanizer_provider_job_seconds",
				Help:    "Wall time of one submit+poll cycle",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90},
			},
			[]string{"status"},
		),
		ProviderPolls: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "humanizer_provider_polls",
			Help:    "Retrieve calls made per job",
			Buckets: prometheus.LinearBuckets(1, 3, 11),
		}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// GateOutcome implements service.Recorder.
func (m *Metrics) GateOutcome(track model.OwnerKind, state service.GateState) {
	m.GateRequests.WithLabelValues(string(track), state.String()).Inc()
}

// CreditCharged implements service.Recorder.
func (m *Metrics) CreditCharged() {
	m.CreditsCharged.Inc()
}

// JobFinished implements humanizer.Observer.
func (m *Metrics) JobFinished(job model.PendingJob, elapsed time.Duration) {
	m.ProviderJobSeconds.WithLabelValues(string(job.Status)).Observe(elapsed.Seconds())
	m.ProviderPolls.Observe(float64(job.Attempt))
}

// ObserveHTTP records one finished request. route is the router pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
