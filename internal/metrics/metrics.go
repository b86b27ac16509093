// Package metrics exposes Prometheus collectors for the price-discovery
// service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Discovery outcome labels.
const (
	OutcomeFound      = "found"
	OutcomeNotFound   = "not_found"
	OutcomeDenied     = "denied"
	OutcomeFault      = "fault"
	OutcomeStoreFault = "store_fault"
)

var (
	discoveriesTotal          *prometheus.CounterVec
	discoveryDurationSeconds  *prometheus.HistogramVec
	priceObservationsCents    *prometheus.HistogramVec
	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDurationSecond *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		discoveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricehound_discoveries_total",
				Help: "Merchant pipelines run, labeled by merchant and outcome.",
			},
			[]string{"merchant", "outcome"},
		)

		discoveryDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricehound_discovery_duration_seconds",
				Help:    "Per-merchant pipeline latency.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45},
			},
			[]string{"merchant"},
		)

		priceObservationsCents = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricehound_price_observation_cents",
				Help:    "Distribution of observed prices in minor units.",
				Buckets: prometheus.ExponentialBuckets(100, 4, 8),
			},
			[]string{"merchant"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecond = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDiscovery records one finished merchant pipeline.
func ObserveDiscovery(merchant, outcome string, duration time.Duration) {
	Init()
	discoveriesTotal.WithLabelValues(merchant, outcome).Inc()
	discoveryDurationSeconds.WithLabelValues(merchant).Observe(duration.Seconds())
}

// ObservePrice records one successful price observation.
func ObservePrice(merchant string, cents int64) {
	Init()
	priceObservationsCents.WithLabelValues(merchant).Observe(float64(cents))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecond.WithLabelValues(method, route).Observe(duration.Seconds())
}
