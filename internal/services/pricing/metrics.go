package pricing

// MetricsCollector receives engine counters.
type MetricsCollector interface {
	RecordTick(symbol string)
	RecordTickError(symbol string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordTick(string)      {}
func (n *NoopMetricsCollector) RecordTickError(string) {}
