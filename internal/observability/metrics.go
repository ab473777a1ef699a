package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Archive metrics
	MessagesArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_archived_total",
			Help: "Total number of messages written to the archive",
		},
		[]string{"kind"},
	)

	ArchiveWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_write_failures_total",
			Help: "Total number of failed archive writes",
		},
	)

	MessagesEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_evicted_total",
			Help: "Total number of messages removed by retention",
		},
		[]string{"rule"},
	)

	// Digest metrics
	DigestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_runs_total",
			Help: "Total number of digest pipeline runs",
		},
		[]string{"status"},
	)

	DigestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digest_duration_seconds",
			Help:    "End-to-end digest pipeline latency in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// Upstream metrics
	GenAIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genai_request_duration_seconds",
			Help:    "Generative backend request latency in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	TelegramSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_sends_total",
			Help: "Total number of Telegram sendMessage calls",
		},
		[]string{"status"},
	)
)
