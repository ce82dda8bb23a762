package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/location-gateway/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream provider call rate by provider and outcome.
	ProviderCallsTotal *prometheus.CounterVec

	// Upstream latency. Watch for: p95 > 2s on any provider.
	ProviderDuration *prometheus.HistogramVec

	// Retry attempts per provider. Watch for: high retries = unstable upstream.
	ProviderRetriesTotal *prometheus.CounterVec

	// Provider errors by stable category label (timeout, upstream_5xx, ...).
	ProviderErrorsTotal *prometheus.CounterVec

	// Circuit breaker state per provider: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions. Watch for: flapping.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Cache-aside decisions per category (hit, stale, miss). Hit rate = hit/(hit+stale+miss).
	CacheLookupsTotal *prometheus.CounterVec

	// Location resolution source (cache, store, geocode).
	LocationLookupsTotal *prometheus.CounterVec

	// Location hot-cache failures by operation. Non-fatal; store is authoritative.
	LocationCacheErrorsTotal *prometheus.CounterVec

	// Store latency by operation and table.
	StoreOperationDurationSeconds *prometheus.HistogramVec

	// Refreshes that started while another refresh for the same key was in progress.
	ConcurrentMissesTotal *prometheus.CounterVec

	// Total queries by tracked query text (allow-list; others go to "other").
	QueriesByLocationTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Scheduled warming runs, failures and duration.
	WarmingRunsTotal       prometheus.Counter
	WarmingErrorsTotal     prometheus.Counter
	WarmingDurationSeconds prometheus.Histogram

	trackedQueriesMu sync.RWMutex
	trackedQueries   map[string]struct{}

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerCallsTotal",
			Help: "Total number of upstream provider calls",
		},
		[]string{"provider", "status"},
	)
	ProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerDurationSeconds",
			Help:    "Upstream provider latency in seconds (per attempt)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "status"},
	)
	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerRetriesTotal",
			Help: "Total number of retry attempts for upstream provider calls",
		},
		[]string{"provider"},
	)
	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerErrorsTotal",
			Help: "Upstream provider failures by error category",
		},
		[]string{"provider", "category"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
		},
		[]string{"provider"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"provider", "from", "to"},
	)
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheLookupsTotal",
			Help: "Cache-aside decisions per category (hit, stale, miss)",
		},
		[]string{"category", "outcome"},
	)
	LocationLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locationLookupsTotal",
			Help: "Location resolutions by source (cache, store, geocode)",
		},
		[]string{"source"},
	)
	LocationCacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locationCacheErrorsTotal",
			Help: "Location hot-cache errors by operation",
		},
		[]string{"op"},
	)
	StoreOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storeOperationDurationSeconds",
			Help:    "Store operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"op", "table", "status"},
	)
	ConcurrentMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concurrentMissesTotal",
			Help: "Refreshes started while another refresh for the same key was in progress",
		},
		[]string{"category"},
	)
	QueriesByLocationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queriesByLocationTotal",
			Help: "Queries by location text (allow-list; others use location=other)",
		},
		[]string{"location"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	WarmingRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warmingRunsTotal",
			Help: "Total number of scheduled warming runs",
		},
	)
	WarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warmingErrorsTotal",
			Help: "Warming runs with at least one failed query",
		},
	)
	WarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warmingDurationSeconds",
			Help:    "Duration of a warming run in seconds",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60},
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ProviderCallsTotal, ProviderDuration, ProviderRetriesTotal, ProviderErrorsTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		CacheLookupsTotal, LocationLookupsTotal, LocationCacheErrorsTotal,
		StoreOperationDurationSeconds, ConcurrentMissesTotal,
		QueriesByLocationTotal, RateLimitDeniedTotal,
		WarmingRunsTotal, WarmingErrorsTotal, WarmingDurationSeconds,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// SetTrackedQueries sets the allow-list for per-location metrics. Untracked queries increment "other".
func SetTrackedQueries(queries []string) {
	trackedQueriesMu.Lock()
	defer trackedQueriesMu.Unlock()
	trackedQueries = make(map[string]struct{}, len(queries))
	for _, q := range queries {
		trackedQueries[normalizeForMetrics(q)] = struct{}{}
	}
}

// RecordQuery records an inbound query for the given location text.
func RecordQuery(query string) {
	q := normalizeForMetrics(query)
	trackedQueriesMu.RLock()
	_, ok := trackedQueries[q]
	trackedQueriesMu.RUnlock()
	if ok {
		QueriesByLocationTotal.WithLabelValues(q).Inc()
	} else {
		QueriesByLocationTotal.WithLabelValues("other").Inc()
	}
}

// BreakerStateValue maps a breaker state name to the circuitBreakerState gauge value.
func BreakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

func normalizeForMetrics(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
