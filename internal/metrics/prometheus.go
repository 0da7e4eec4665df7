// Package metrics exposes Prometheus collectors that satisfy the
// MetricsCollector interfaces of the core services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stakeoption"

type Collector struct {
	registry *prometheus.Registry

	ticks          *prometheus.CounterVec
	tickErrors     *prometheus.CounterVec
	ledgerOps      *prometheus.HistogramVec
	tradesPlaced   *prometheus.CounterVec
	tradesRejected *prometheus.CounterVec
	tradesSettled  *prometheus.CounterVec
	settlement     *prometheus.CounterVec
	callbacks      *prometheus.CounterVec
	wsConnections  prometheus.Gauge
	wsDropped      prometheus.Counter
}

// New registers every collector on a fresh registry along with the Go
// runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_ticks_total",
			Help:      "Price ticks published per instrument.",
		}, []string{"symbol"}),
		tickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_tick_errors_total",
			Help:      "Ticks that could not be published.",
		}, []string{"symbol"}),
		ledgerOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation latency by operation and result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "result"}),
		tradesPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_placed_total",
			Help:      "Trades accepted.",
		}, []string{"symbol", "demo"}),
		tradesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_rejected_total",
			Help:      "Trades refused, by error code.",
		}, []string{"code"}),
		tradesSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_settled_total",
			Help:      "Trades settled by result.",
		}, []string{"symbol", "result", "demo"}),
		settlement: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_events_total",
			Help:      "Due-queue claims, requeues and failures.",
		}, []string{"event"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_callbacks_total",
			Help:      "Provider callbacks by kind and outcome.",
		}, []string{"kind", "outcome"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
		wsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_dropped_frames_total",
			Help:      "Frames dropped because a client buffer was full.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.ticks, c.tickErrors, c.ledgerOps,
		c.tradesPlaced, c.tradesRejected, c.tradesSettled,
		c.settlement, c.callbacks, c.wsConnections, c.wsDropped,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// pricing

func (c *Collector) RecordTick(symbol string) {
	c.ticks.WithLabelValues(symbol).Inc()
}

func (c *Collector) RecordTickError(symbol string) {
	c.tickErrors.WithLabelValues(symbol).Inc()
}

// ledger

func (c *Collector) RecordLedgerOperation(operation, result string, duration time.Duration) {
	c.ledgerOps.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// trade

func (c *Collector) RecordTradePlaced(symbol string, demo bool) {
	c.tradesPlaced.WithLabelValues(symbol, strconv.FormatBool(demo)).Inc()
}

func (c *Collector) RecordTradeRejected(code string) {
	c.tradesRejected.WithLabelValues(code).Inc()
}

func (c *Collector) RecordTradeSettled(symbol, result string, demo bool) {
	c.tradesSettled.WithLabelValues(symbol, result, strconv.FormatBool(demo)).Inc()
}

// settlement

func (c *Collector) RecordClaim() {
	c.settlement.WithLabelValues("claim").Inc()
}

func (c *Collector) RecordRequeue() {
	c.settlement.WithLabelValues("requeue").Inc()
}

func (c *Collector) RecordFailure() {
	c.settlement.WithLabelValues("failure").Inc()
}

// payment

func (c *Collector) RecordCallback(kind, outcome string) {
	c.callbacks.WithLabelValues(kind, outcome).Inc()
}

// websocket

func (c *Collector) RecordConnection(delta int) {
	c.wsConnections.Add(float64(delta))
}

func (c *Collector) RecordDropped(n int) {
	c.wsDropped.Add(float64(n))
}
