package metrics

// Metrics recorded by the dispatch pipeline.

var latencyBuckets = []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60}

// DispatchTotal counts finished dispatches by terminal status
// (processed, locked, ignored, non_text_message_ignored, error).
func DispatchTotal(status string) *Counter {
	return Collector.Counter("tako_dispatch_total", "Dispatches by terminal status", Label("status", status))
}

// EscalationTotal counts processed dispatches by escalation tier.
func EscalationTotal(tier string) *Counter {
	return Collector.Counter("tako_escalation_total", "Processed dispatches by escalation tier", Label("tier", tier))
}

// GenerationLatency observes generation and agent call latency per backend.
func GenerationLatency(backend string) *Histogram {
	return Collector.Histogram("tako_generation_latency_seconds", "Generation call latency in seconds",
		Label("backend", backend), latencyBuckets)
}

// GenerationErrors counts failed generation calls per backend.
func GenerationErrors(backend string) *Counter {
	return Collector.Counter("tako_generation_errors_total", "Failed generation calls", Label("backend", backend))
}

// DeliveryFailures counts outbound messages the channel rejected.
func DeliveryFailures(channel string) *Counter {
	return Collector.Counter("tako_delivery_failures_total", "Outbound messages that failed to send", Label("channel", channel))
}

var (
	LockContention    = Collector.Counter("tako_lock_contention_total", "Events dropped because the user lock was held", "")
	LockReleaseErrors = Collector.Counter("tako_lock_release_errors_total", "Lock releases that failed", "")
	InFlight          = Collector.Gauge("tako_dispatch_in_flight", "Dispatches currently holding a lock", "")

	DispatchLatency = Collector.Histogram("tako_dispatch_latency_seconds", "End-to-end dispatch latency in seconds", "",
		latencyBuckets)
)
