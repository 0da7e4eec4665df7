package ledger

import "time"

// MetricsCollector records ledger activity.
type MetricsCollector interface {
	RecordLedgerOperation(operation, result string, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordLedgerOperation(string, string, time.Duration) {}
