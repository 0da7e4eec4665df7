package trade

// MetricsCollector records trade placement and settlement.
type MetricsCollector interface {
	RecordTradePlaced(symbol string, demo bool)
	RecordTradeRejected(code string)
	RecordTradeSettled(symbol, result string, demo bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordTradePlaced(string, bool)          {}
func (n *NoopMetricsCollector) RecordTradeRejected(string)              {}
func (n *NoopMetricsCollector) RecordTradeSettled(string, string, bool) {}
