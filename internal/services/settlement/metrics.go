package settlement

// MetricsCollector counts scheduler outcomes.
type MetricsCollector interface {
	RecordClaim()
	RecordRequeue()
	RecordFailure()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordClaim()   {}
func (n *NoopMetricsCollector) RecordRequeue() {}
func (n *NoopMetricsCollector) RecordFailure() {}
