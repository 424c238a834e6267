// Package metrics provides Prometheus metrics for the site daemon.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay low-cardinality: route patterns, task names and backends only.

var (
	// HTTPRequestsTotal counts handled requests by route pattern, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitekit_http_requests_total",
		Help: "Total number of HTTP requests, by route, method and status code.",
	}, []string{"route", "method", "code"})

	// HTTPRequestDuration observes request latency by route pattern and method.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitekit_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds, by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// HTTPInFlight tracks requests currently being served.
	HTTPInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sitekit_http_in_flight_requests",
		Help: "Number of HTTP requests currently being served.",
	})

	// TasksPublishedTotal counts enqueued tasks by name.
	TasksPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitekit_tasks_published_total",
		Help: "Total number of tasks published to the broker, by task.",
	}, []string{"task"})

	// TasksProcessedTotal counts completed task executions by name and outcome.
	TasksProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitekit_tasks_processed_total",
		Help: "Total number of task executions, by task and status (succeeded/failed/retried).",
	}, []string{"task", "status"})

	// TaskDuration observes task execution time by name.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitekit_task_duration_seconds",
		Help:    "Task execution time in seconds, by task.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"task"})

	// SchedulerLastRun records the unix time of the last successful beat publish.
	SchedulerLastRun = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sitekit_scheduler_last_run_timestamp_seconds",
		Help: "Unix time of the last successful scheduled publish, by task.",
	}, []string{"task"})

	// CacheRequestsTotal counts cache lookups by backend and result.
	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitekit_cache_requests_total",
		Help: "Total number of cache lookups, by backend and result (hit/miss).",
	}, []string{"backend", "result"})

	// MailSentTotal counts outgoing mail by backend and outcome.
	MailSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitekit_mail_sent_total",
		Help: "Total number of mail deliveries, by backend and status (sent/failed/throttled).",
	}, []string{"backend", "status"})

	// ConfigInfo exposes the resolved environment tag and debug flag.
	ConfigInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sitekit_config_info",
		Help: "Always 1; labels carry the resolved environment and debug flag.",
	}, []string{"environment", "debug"})
)

// ObserveHTTP records one finished request.
func ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveTask records one task execution.
func ObserveTask(task, status string, elapsed time.Duration) {
	TasksProcessedTotal.WithLabelValues(task, status).Inc()
	TaskDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

// RecordCacheLookup counts a hit or miss.
func RecordCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequestsTotal.WithLabelValues(backend, result).Inc()
}

// RecordConfig publishes the resolved environment once at startup.
func RecordConfig(environment string, debug bool) {
	ConfigInfo.Reset()
	ConfigInfo.WithLabelValues(environment, strconv.FormatBool(debug)).Set(1)
}
