package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreErrorRate counts document store errors by operation type.
	StoreErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatzam_store_error_rate_total",
		Help: "Total number of document store errors by operation type",
	}, []string{"operation"})

	// StoreOpLatency records document store operation latency.
	StoreOpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatzam_store_op_latency_seconds",
		Help:    "Document store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// ProfileSyncOutcomes counts profile fan-out results by status.
	ProfileSyncOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatzam_profile_sync_outcomes_total",
		Help: "Total number of profile summary fan-outs by outcome status",
	}, []string{"status"})

	// MessagesSent counts message delivery attempts by result.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatzam_messages_sent_total",
		Help: "Total number of message sends by result",
	}, []string{"result", "message_type"})

	// NotificationsDispatched counts push deliveries by result.
	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatzam_notifications_dispatched_total",
		Help: "Total number of push notification deliveries by result",
	}, []string{"result"})
)

// StoreMetrics wraps store access for recording operation latency.
type StoreMetrics struct{}

// ObserveOp records the latency of a store operation.
func (m StoreMetrics) ObserveOp(operation, collection string, start time.Time) {
	latency := time.Since(start).Seconds()
	StoreOpLatency.WithLabelValues(operation, collection).Observe(latency)
}

// TrackOp returns a function that records operation latency when called (e.g. defer).
func (m StoreMetrics) TrackOp(operation, collection string) func() {
	start := time.Now()
	return func() {
		m.ObserveOp(operation, collection, start)
	}
}
