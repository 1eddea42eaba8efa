// Package metrics exposes Prometheus collectors for the tracker.
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

var (
	trackerRunsTotal           *prometheus.CounterVec
	trackerRunDurationSeconds  *prometheus.HistogramVec
	trackerFetchesTotal        *prometheus.CounterVec
	trackerFetchDuration       prometheus.Histogram
	trackerFetchThrottle       *prometheus.HistogramVec
	trackerMembersOnline       prometheus.Gauge
	trackerMembersTracked      prometheus.Gauge
	trackerNotificationsTotal  *prometheus.CounterVec
	trackerDiscordMessages     *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times; every
// observer calls it, so explicit initialization is only needed to expose
// zero-valued series early.
func Init() {
	once.Do(func() {
		trackerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_runs_total",
				Help: "Total number of tracking passes, labeled by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		)

		trackerRunDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracker_run_duration_seconds",
				Help:    "Histogram of tracking pass durations, labeled by mode.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"mode"},
		)

		trackerFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_fetches_total",
				Help: "Total number of homepage fetches, labeled by status.",
			},
			[]string{"status"},
		)

		trackerFetchDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracker_fetch_duration_seconds",
				Help:    "Histogram of successful homepage fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
		)

		trackerFetchThrottle = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracker_fetch_throttle_seconds",
				Help:    "Time a fetch waited on the per-host rate limiter, labeled by host.",
				Buckets: []float64{0.01, 0.1, 1, 5, 15, 30, 60},
			},
			[]string{"host"},
		)

		trackerMembersOnline = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracker_members_online",
				Help: "Guild members online during the last pass.",
			},
		)

		trackerMembersTracked = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracker_members_tracked",
				Help: "Guild members on the roster after the last pass.",
			},
		)

		trackerNotificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_notifications_total",
				Help: "Total notifications attempted, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		trackerDiscordMessages = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_discord_messages_total",
				Help: "Total Discord webhook messages, labeled by outcome.",
			},
			[]string{"outcome"},
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
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveRun records a finished pass.
func ObserveRun(mode, outcome string, duration time.Duration) {
	Init()
	trackerRunsTotal.WithLabelValues(mode, outcome).Inc()
	trackerRunDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveFetch records a homepage fetch. duration is ignored for failures.
func ObserveFetch(status string, duration time.Duration) {
	Init()
	trackerFetchesTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		trackerFetchDuration.Observe(duration.Seconds())
	}
}

// ObserveFetchThrottle records how long a fetch waited for its host's token.
func ObserveFetchThrottle(host string, delay time.Duration) {
	Init()
	trackerFetchThrottle.WithLabelValues(host).Observe(delay.Seconds())
}

// SetMembers publishes the roster gauges.
func SetMembers(online, tracked int) {
	Init()
	trackerMembersOnline.Set(float64(online))
	trackerMembersTracked.Set(float64(tracked))
}

// ObserveNotification counts summary and presence notifications.
func ObserveNotification(kind, outcome string) {
	Init()
	trackerNotificationsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveDiscordMessage counts individual webhook messages.
func ObserveDiscordMessage(outcome string) {
	Init()
	trackerDiscordMessages.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
