// Package metrics provides Prometheus metrics for pipeline runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRunsTotal tracks pipeline runs by final state
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by final state",
		},
		[]string{"pipeline", "state"},
	)

	// PipelineRunDuration tracks whole-run duration
	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"pipeline"},
	)

	// StageDuration tracks each orchestrator stage
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		},
		[]string{"pipeline", "stage", "status"},
	)

	// RetryAttemptsTotal tracks remote call attempts
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Total number of remote call attempts by outcome",
		},
		[]string{"call", "outcome"},
	)

	// ExtractedRecordsTotal tracks raw records written to the extraction tier
	ExtractedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "extraction",
			Name:      "records_total",
			Help:      "Total number of raw records upserted into the extraction tier",
		},
		[]string{"unit"},
	)

	// TransformedRecordsTotal tracks per-record transform outcomes
	TransformedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "transform",
			Name:      "records_total",
			Help:      "Total number of records transformed by outcome",
		},
		[]string{"unit", "outcome"},
	)

	// MergesTotal tracks production merge results
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "load",
			Name:      "merges_total",
			Help:      "Total number of production merges by result",
		},
		[]string{"namespace", "result"},
	)

	// CleanupsTotal tracks namespace cleanups
	CleanupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "cleanup",
			Name:      "runs_total",
			Help:      "Total number of tier cleanups by status",
		},
		[]string{"tier", "status"},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordRun records a finished pipeline run
func RecordRun(pipeline, state string, durationSeconds float64) {
	PipelineRunsTotal.WithLabelValues(pipeline, state).Inc()
	PipelineRunDuration.WithLabelValues(pipeline).Observe(durationSeconds)
}

// RecordStage records one orchestrator stage
func RecordStage(pipeline, stage, status string, durationSeconds float64) {
	StageDuration.WithLabelValues(pipeline, stage, status).Observe(durationSeconds)
}

// RecordAttempt records a single remote call attempt
func RecordAttempt(call, outcome string) {
	RetryAttemptsTotal.WithLabelValues(call, outcome).Inc()
}

// RecordExtracted records raw records written by an extraction unit
func RecordExtracted(unit string, count int) {
	ExtractedRecordsTotal.WithLabelValues(unit).Add(float64(count))
}

// RecordTransformed records one per-record transform outcome
func RecordTransformed(unit, outcome string) {
	TransformedRecordsTotal.WithLabelValues(unit, outcome).Inc()
}

// RecordMerge records a production merge result
func RecordMerge(namespace, result string) {
	MergesTotal.WithLabelValues(namespace, result).Inc()
}

// RecordCleanup records a namespace cleanup
func RecordCleanup(tier, status string) {
	CleanupsTotal.WithLabelValues(tier, status).Inc()
}

// RecordHTTPRequest records an outbound HTTP request metric
func RecordHTTPRequest(method, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
