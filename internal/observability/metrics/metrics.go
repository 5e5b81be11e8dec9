package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests handled by the claim API",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	chainOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "chain_operation_duration_seconds",
		Help: "Time spent on ledger RPC operations",
		// Receipt waits run to a minute, well past the default buckets.
		Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 15, 30, 60, 90},
	}, []string{"operation"})

	claimOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claim_outcomes_total",
		Help: "Settlement outcomes by result kind",
	}, []string{"kind"})

	dbOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_operation_duration_seconds",
		Help:    "Time spent executing database operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	redisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Time spent executing redis operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	kafkaOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_operation_duration_seconds",
		Help:    "Time spent sending data to Kafka",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	recorderProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recorder_process_duration_seconds",
		Help:    "Time spent processing settlement events in the consumer service",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})
)

// ObserveHTTPRequest tracks the handling time of HTTP requests.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveChainOperation tracks ledger RPC call duration.
func ObserveChainOperation(operation string, d time.Duration) {
	chainOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// CountClaimOutcome bumps the outcome counter for one settled or
// rejected claim attempt.
func CountClaimOutcome(kind string) {
	claimOutcomes.WithLabelValues(kind).Inc()
}

// ObserveDBOperation tracks database call duration.
func ObserveDBOperation(operation string, d time.Duration) {
	dbOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveRedisOperation tracks redis call duration.
func ObserveRedisOperation(operation string, d time.Duration) {
	redisOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveKafkaOperation tracks kafka call duration.
func ObserveKafkaOperation(operation string, d time.Duration) {
	kafkaOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveRecorderProcessing tracks settlement recorder stages.
func ObserveRecorderProcessing(step string, d time.Duration) {
	recorderProcessDuration.WithLabelValues(step).Observe(d.Seconds())
}
