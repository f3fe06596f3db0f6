// Package metrics exposes Prometheus collectors for the quote crawler service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal         *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	archiveWritesTotal         *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	activeStreams              prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_fetch_requests_total",
				Help: "Total number of catalog fetches, labeled by site and outcome.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotes_fetch_duration_seconds",
				Help:    "Histogram of catalog fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"site"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 60},
			},
			[]string{"method", "route"},
		)

		archiveWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_archive_writes_total",
				Help: "Raw page archive writes, labeled by result.",
			},
			[]string{"result"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotes_rate_limit_delay_seconds",
				Help:    "Histogram of time spent waiting for the per-site fetch rate limit.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		activeStreams = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "quotes_active_streams",
				Help: "Number of crawl event streams currently open.",
			},
		)
	})
}

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

// FetchStatus labels a fetch outcome: the status code when a response
// arrived, "error" otherwise.
func FetchStatus(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code)
}

// ObserveFetch records one catalog fetch.
func ObserveFetch(rawURL, status string, bytesFetched int, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	fetchRequestsTotal.WithLabelValues(site, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
	fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveArchiveWrite counts a page archive attempt.
func ObserveArchiveWrite(err error) {
	Init()
	result := "success"
	if err != nil {
		result = "error"
	}
	archiveWritesTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records a wait imposed by the fetch rate limiter.
func ObserveRateLimitDelay(site string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(site).Observe(d.Seconds())
}

// IncActiveStreams increments the open stream gauge.
func IncActiveStreams() {
	Init()
	activeStreams.Inc()
}

// DecActiveStreams decrements the open stream gauge.
func DecActiveStreams() {
	Init()
	activeStreams.Dec()
}
