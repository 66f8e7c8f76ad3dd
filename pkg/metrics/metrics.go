package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of search requests received (count)",
		},
		[]string{"operation", "direction", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_duration_ms",
			Help:    "Duration of a full search request in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"operation"},
	)

	IntervalsGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intervals_generated_total",
			Help: "Total number of day-bounded intervals produced by the interval generator (count)",
		},
		[]string{"direction"},
	)

	EventSearchBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_search_batches_total",
			Help: "Total number of event batches retrieved from the store gateway (count)",
		},
		[]string{"status"},
	)

	ParentEventCountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parent_event_count_total",
			Help: "Total number of parent-event count lookups (count)",
		},
		[]string{"status"},
	)

	CodecRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codec_requests_total",
			Help: "Total number of decode requests dispatched to the codec broker (count)",
		},
		[]string{"status"},
	)

	CodecResponseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codec_response_duration_ms",
			Help:    "Duration from codec dispatch to response in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	CodecPendingRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codec_pending_requests",
			Help: "Number of decode requests currently awaiting a codec response (count)",
		},
	)

	CodecTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codec_timeouts_total",
			Help: "Total number of decode requests that timed out waiting for a codec response (count)",
		},
		[]string{"reason"},
	)

	StreamMergeTieBreaksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_merge_tiebreaks_total",
			Help: "Total number of equal-timestamp tie-breaks resolved by the stream merger (count)",
		},
		[]string{"winner"},
	)

	FilterPipelineEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_pipeline_evaluations_total",
			Help: "Total number of filter predicate evaluations (count)",
		},
		[]string{"kind", "result"},
	)

	FilterPresetEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_preset_evaluations_total",
			Help: "Total number of filter preset CEL expression evaluations (count)",
		},
		[]string{"preset_id", "result"},
	)

	FilterPresetsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "filter_presets_active",
			Help: "Number of active filter presets (count)",
		},
	)

	SSEFramesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_frames_written_total",
			Help: "Total number of SSE frames written to clients (count)",
		},
		[]string{"kind"},
	)

	SSEActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_active_connections",
			Help: "Number of currently open SSE connections (count)",
		},
	)

	AuditEventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_published_total",
			Help: "Total number of search-audit events published to the broker (count)",
		},
		[]string{"status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"component", "operation"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)

	DatabaseConnectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections (count)",
		},
		[]string{"service", "database"},
	)

	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache lookups by outcome (count)",
		},
		[]string{"cache", "outcome"},
	)
)

func RegisterSearchMetrics() {
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(IntervalsGeneratedTotal)
	prometheus.MustRegister(EventSearchBatchesTotal)
	prometheus.MustRegister(ParentEventCountTotal)
	prometheus.MustRegister(StreamMergeTieBreaksTotal)
	prometheus.MustRegister(FilterPipelineEvaluationsTotal)
}

func RegisterCodecMetrics() {
	prometheus.MustRegister(CodecRequestsTotal)
	prometheus.MustRegister(CodecResponseDuration)
	prometheus.MustRegister(CodecPendingRequests)
	prometheus.MustRegister(CodecTimeoutsTotal)
}

func RegisterFilterPresetMetrics() {
	prometheus.MustRegister(FilterPresetEvaluationsTotal)
	prometheus.MustRegister(FilterPresetsActive)
}

func RegisterSSEMetrics() {
	prometheus.MustRegister(SSEFramesWrittenTotal)
	prometheus.MustRegister(SSEActiveConnections)
}

func RegisterAuditMetrics() {
	prometheus.MustRegister(AuditEventsPublishedTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterStoreMetrics() {
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
	prometheus.MustRegister(DatabaseConnectionsActive)
	prometheus.MustRegister(CacheHitsTotal)
}

func RegisterHTTPMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveSearchDuration(operation string, duration time.Duration) {
	SearchDuration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}

func IncSearchRequest(operation, direction, status string) {
	SearchRequestsTotal.WithLabelValues(operation, direction, status).Inc()
}

func IncIntervalsGenerated(direction string, count int) {
	IntervalsGeneratedTotal.WithLabelValues(direction).Add(float64(count))
}

func IncEventSearchBatch(status string) {
	EventSearchBatchesTotal.WithLabelValues(status).Inc()
}

func IncParentEventCount(status string) {
	ParentEventCountTotal.WithLabelValues(status).Inc()
}

func IncCodecRequest(status string) {
	CodecRequestsTotal.WithLabelValues(status).Inc()
}

func ObserveCodecResponseDuration(status string, duration time.Duration) {
	CodecResponseDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func IncCodecTimeout(reason string) {
	CodecTimeoutsTotal.WithLabelValues(reason).Inc()
}

func IncStreamMergeTieBreak(winner string) {
	StreamMergeTieBreaksTotal.WithLabelValues(winner).Inc()
}

func IncFilterPipelineEvaluation(kind, result string) {
	FilterPipelineEvaluationsTotal.WithLabelValues(kind, result).Inc()
}

func IncFilterPresetEvaluation(presetID, result string) {
	FilterPresetEvaluationsTotal.WithLabelValues(presetID, result).Inc()
}

func SetFilterPresetsActive(count int) {
	FilterPresetsActive.Set(float64(count))
}

func IncSSEFrameWritten(kind string) {
	SSEFramesWrittenTotal.WithLabelValues(kind).Inc()
}

func SetSSEActiveConnections(delta int) {
	SSEActiveConnections.Add(float64(delta))
}

func IncAuditEventPublished(status string) {
	AuditEventsPublishedTotal.WithLabelValues(status).Inc()
}

func IncRetryAttempt(component, operation string) {
	RetryAttemptsTotal.WithLabelValues(component, operation).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}

func SetDatabaseConnectionsActive(service, database string, count int) {
	DatabaseConnectionsActive.WithLabelValues(service, database).Set(float64(count))
}

func IncCacheHit(cache, outcome string) {
	CacheHitsTotal.WithLabelValues(cache, outcome).Inc()
}
