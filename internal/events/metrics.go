package events

// MetricsCollector tracks open connections and frames lost to slow clients.
type MetricsCollector interface {
	RecordConnection(delta int)
	RecordDropped(n int)
}

type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordConnection(int) {}
func (n *NoopMetricsCollector) RecordDropped(int)    {}
