// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Asset cache outcomes.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	assetCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteo_asset_cache_total",
			Help: "Asset fetches resolved by the session cache, labeled by result.",
		},
		[]string{"result"},
	)

	liveFetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meteo_live_fetch_duration_seconds",
			Help:    "Latency of network fetches, labeled by site and outcome.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"site", "outcome"},
	)

	liveFetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteo_live_fetch_bytes_total",
			Help: "Bytes received from the network, labeled by site.",
		},
		[]string{"site"},
	)

	zonesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteo_zones_total",
			Help: "Zones processed, labeled by status.",
		},
		[]string{"status"},
	)

	tasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meteo_tasks_in_flight",
			Help: "Zone tasks submitted to the pool and not yet completed.",
		},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteo_runs_total",
			Help: "Crawl runs, labeled by status.",
		},
		[]string{"status"},
	)

	runDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meteo_run_duration_seconds",
			Help:    "Wall time of complete crawl runs.",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 2400},
		},
	)

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meteo_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCacheLookup counts a session cache hit or miss.
func ObserveCacheLookup(result string) {
	assetCacheTotal.WithLabelValues(result).Inc()
}

// ObserveLiveFetch records one network round trip.
func ObserveLiveFetch(rawURL string, err error, size int, duration time.Duration) {
	site := SanitizeSite(rawURL)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	liveFetchDurationSeconds.WithLabelValues(site, outcome).Observe(duration.Seconds())
	if size > 0 {
		liveFetchBytesTotal.WithLabelValues(site).Add(float64(size))
	}
}

// ObserveZone increments the zone counter for the given status.
func ObserveZone(status string) {
	zonesTotal.WithLabelValues(status).Inc()
}

// IncTasksInFlight increments the in-flight task gauge.
func IncTasksInFlight() {
	tasksInFlight.Inc()
}

// DecTasksInFlight decrements the in-flight task gauge.
func DecTasksInFlight() {
	tasksInFlight.Dec()
}

// ObserveRun records the outcome and duration of a crawl run.
func ObserveRun(status string, duration time.Duration) {
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
