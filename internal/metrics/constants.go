package metrics

// Metric names
const (
	MetricNameHTTPRequestsTotal    = "pilotlog_http_requests_total"
	MetricNameHTTPRequestDuration  = "pilotlog_http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "pilotlog_http_requests_in_flight"

	MetricNameSyncCycles       = "pilotlog_sync_cycles_total"
	MetricNameSyncCycleSeconds = "pilotlog_sync_cycle_duration_seconds"
	MetricNamePushedEntries    = "pilotlog_pushed_entries_total"
	MetricNamePushFailures     = "pilotlog_push_failures_total"
	MetricNamePulledRecords    = "pilotlog_pulled_records_total"
	MetricNameSkippedRecords   = "pilotlog_skipped_records_total"
	MetricNameOutboxDepth      = "pilotlog_outbox_depth"
	MetricNameSyncState        = "pilotlog_sync_state"

	MetricNameAppliedMutations = "pilotlog_server_applied_mutations_total"
	MetricNameReplayedEntries  = "pilotlog_server_replayed_entries_total"
)

// Help text
const (
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight = "Current number of HTTP requests being served"

	HelpTextSyncCycles       = "Full sync cycles run, by result"
	HelpTextSyncCycleSeconds = "Duration of full sync cycles in seconds"
	HelpTextPushedEntries    = "Outbox entries acknowledged by the remote store"
	HelpTextPushFailures     = "Outbox entries whose push failed and stay queued"
	HelpTextPulledRecords    = "Server records merged into the local store"
	HelpTextSkippedRecords   = "Pulled records skipped as malformed"
	HelpTextOutboxDepth      = "Outbox entries waiting for delivery"
	HelpTextSyncState        = "1 for the current orchestrator state, 0 otherwise"

	HelpTextAppliedMutations = "Pushed mutations applied by the server, by outcome"
	HelpTextReplayedEntries  = "Pushed entries answered from the idempotency cache"
)

// Labels
const (
	LabelMethod     = "method"
	LabelPath       = "path"
	LabelStatus     = "status"
	LabelCollection = "collection"
	LabelType       = "type"
	LabelResult     = "result"
	LabelState      = "state"
	LabelOutcome    = "outcome"
)

// HTTPLatencyBuckets covers quick local calls up to slow mobile links.
var HTTPLatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
