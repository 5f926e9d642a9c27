package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "exchange_rate_api"

// Metrics holds the collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LookupsTotal         *prometheus.CounterVec
	ProviderFetchesTotal *prometheus.CounterVec
	UpdateRetriesTotal   prometheus.Counter
	UpdateConflictsTotal prometheus.Counter
	PublishTotal         *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LookupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_lookups_total",
			Help:      "Rate lookups against the store by result (hit, miss).",
		}, []string{"result"}),
		ProviderFetchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fetches_total",
			Help:      "Calls to the external quote provider by outcome.",
		}, []string{"outcome"}),
		UpdateRetriesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_retries_total",
			Help:      "Optimistic concurrency retries performed by updates.",
		}),
		UpdateConflictsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_conflicts_total",
			Help:      "Updates that exhausted their retry budget.",
		}),
		PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Change notifications by kind and outcome.",
		}, []string{"kind", "outcome"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveLookup counts a store lookup.
func (m *Metrics) ObserveLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.LookupsTotal.WithLabelValues(result).Inc()
}

// ObserveProviderFetch counts a provider call.
func (m *Metrics) ObserveProviderFetch(err error) {
	if m == nil {
		return
	}
	m.ProviderFetchesTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveUpdateRetry counts one optimistic retry.
func (m *Metrics) ObserveUpdateRetry() {
	if m == nil {
		return
	}
	m.UpdateRetriesTotal.Inc()
}

// ObserveUpdateConflict counts an update that ran out of retries.
func (m *Metrics) ObserveUpdateConflict() {
	if m == nil {
		return
	}
	m.UpdateConflictsTotal.Inc()
}

// ObservePublish counts a change notification attempt.
func (m *Metrics) ObservePublish(kind string, err error) {
	if m == nil {
		return
	}
	m.PublishTotal.WithLabelValues(kind, outcome(err)).Inc()
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
