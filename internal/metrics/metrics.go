// Package metrics exposes the client's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the sagesync collectors.
	Registry = prometheus.NewRegistry()

	pageLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sagesync",
			Subsystem: "loader",
			Name:      "page_loads_total",
			Help:      "Page load attempts by collection and outcome.",
		},
		[]string{"collection", "outcome"},
	)

	mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sagesync",
			Subsystem: "mutation",
			Name:      "mutations_total",
			Help:      "Optimistic mutations by name and outcome.",
		},
		[]string{"name", "outcome"},
	)

	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sagesync",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Gateway requests by method and status.",
		},
		[]string{"method", "status"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sagesync",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Duration of gateway requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sagesync",
			Subsystem: "gateway",
			Name:      "cache_lookups_total",
			Help:      "Catalog cache lookups by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(pageLoads, mutations, gatewayRequests, gatewayDuration, cacheLookups)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Load outcomes.
const (
	OutcomeApplied    = "applied"
	OutcomeSkipped    = "skipped"
	OutcomeSuperseded = "superseded"
	OutcomeFailed     = "failed"
	OutcomeCommitted  = "committed"
	OutcomeReverted   = "reverted"
)

func RecordPageLoad(collection, outcome string) {
	pageLoads.WithLabelValues(collection, outcome).Inc()
}

func RecordMutation(name, outcome string) {
	mutations.WithLabelValues(name, outcome).Inc()
}

// RecordGatewayRequest records one round trip; status 0 means no response.
func RecordGatewayRequest(method string, status int, d time.Duration) {
	gatewayRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	gatewayDuration.WithLabelValues(method).Observe(d.Seconds())
}

func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}
