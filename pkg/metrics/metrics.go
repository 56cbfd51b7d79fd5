package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries slower than the configured threshold",
		},
	)

	// Advisor 调用延迟（毫秒）
	AdvisorCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_call_latency_ms",
			Help:    "AI advisor call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"backend", "status"},
	)

	TasksGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_tasks_generated_total",
			Help: "Total number of tasks persisted by schedule generation",
		},
		[]string{"category"},
	)

	ScheduleInitializations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_initializations_total",
			Help: "Initialize calls by outcome",
		},
		[]string{"outcome"}, // created, existing, reset, failed
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_status_transitions_total",
			Help: "Task status changes by source and target state",
		},
		[]string{"from", "to"},
	)

	RecommendationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Recommendation requests by outcome",
		},
		[]string{"status"}, // success, failed
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}

func RecordAdvisorCallLatency(backend, status string, duration time.Duration) {
	AdvisorCallLatency.WithLabelValues(backend, status).Observe(float64(duration.Milliseconds()))
}

func AddTasksGenerated(category string, n int) {
	TasksGenerated.WithLabelValues(category).Add(float64(n))
}

func IncrementScheduleInitialization(outcome string) {
	ScheduleInitializations.WithLabelValues(outcome).Inc()
}

func IncrementStatusTransition(from, to string) {
	StatusTransitions.WithLabelValues(from, to).Inc()
}

func IncrementRecommendation(status string) {
	RecommendationCount.WithLabelValues(status).Inc()
}
