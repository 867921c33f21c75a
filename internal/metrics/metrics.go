// Package metrics holds the Prometheus collectors of the sync client and the
// reference server. Collectors register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics (server)
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)
)

// Sync metrics (client)
var (
	SyncCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameSyncCycles,
			Help: HelpTextSyncCycles,
		},
		[]string{LabelResult},
	)

	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    MetricNameSyncCycleSeconds,
			Help:    HelpTextSyncCycleSeconds,
			Buckets: HTTPLatencyBuckets,
		},
	)

	PushedEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNamePushedEntries,
			Help: HelpTextPushedEntries,
		},
		[]string{LabelCollection, LabelType},
	)

	PushFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNamePushFailures,
			Help: HelpTextPushFailures,
		},
		[]string{LabelCollection},
	)

	PulledRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNamePulledRecords,
			Help: HelpTextPulledRecords,
		},
		[]string{LabelCollection, LabelOutcome},
	)

	SkippedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameSkippedRecords,
			Help: HelpTextSkippedRecords,
		},
		[]string{LabelCollection},
	)

	OutboxDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameOutboxDepth,
			Help: HelpTextOutboxDepth,
		},
	)

	SyncState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameSyncState,
			Help: HelpTextSyncState,
		},
		[]string{LabelState},
	)
)

// Server sync metrics
var (
	AppliedMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameAppliedMutations,
			Help: HelpTextAppliedMutations,
		},
		[]string{LabelCollection, LabelType, LabelOutcome},
	)

	ReplayedEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameReplayedEntries,
			Help: HelpTextReplayedEntries,
		},
	)
)

// SetState marks state as the only active orchestrator state.
func SetState(state string, all ...string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		SyncState.WithLabelValues(s).Set(v)
	}
}
