package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the registry service: HTTP traffic,
// rule engine outcomes and unit-of-work latency. Each instance owns its own
// registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	UsersCreated     prometheus.Counter
	AccountsCreated  prometheus.Counter
	RuleRejections   *prometheus.CounterVec
	TxDuration       prometheus.Histogram
	ViewCacheLookups *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
}

// New creates a Metrics instance with all registry metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registry_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: durationBuckets,
		}, []string{"method", "route"}),
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_users_created_total",
			Help: "Total number of users created",
		}),
		AccountsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_accounts_created_total",
			Help: "Total number of accounts created",
		}),
		RuleRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_rule_rejections_total",
			Help: "Operations rejected by a business rule, by operation and error kind",
		}, []string{"operation", "kind"}),
		TxDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "registry_unit_of_work_duration_seconds",
			Help:    "Duration of store units of work",
			Buckets: durationBuckets,
		}),
		ViewCacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_view_cache_lookups_total",
			Help: "Read model cache lookups by view and result",
		}, []string{"view", "result"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_events_published_total",
			Help: "Domain events published by type and outcome",
		}, []string{"type", "outcome"}),
	}
}

// Handler exposes the instance's registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// All recorders below are safe to call on a nil *Metrics.

func (m *Metrics) ObserveHTTP(method, route, status string, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

func (m *Metrics) IncrementAccountsCreated() {
	if m == nil {
		return
	}
	m.AccountsCreated.Inc()
}

func (m *Metrics) IncrementRuleRejection(operation, kind string) {
	if m == nil {
		return
	}
	m.RuleRejections.WithLabelValues(operation, kind).Inc()
}

// ObserveTx records the duration of a unit of work.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTx(start time.Time) {
	if m == nil {
		return
	}
	m.TxDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementViewCache(view string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ViewCacheLookups.WithLabelValues(view, result).Inc()
}

func (m *Metrics) IncrementEventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, outcome).Inc()
}
