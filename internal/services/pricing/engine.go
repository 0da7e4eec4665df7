package pricing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stakeoption/internal/logger"
	"stakeoption/internal/models"
)

// spreadFactor scales price*volatility into the half-spread applied to bid and ask.
const spreadFactor = 0.5

// TickStore is where generated quotes go: a short-TTL cache plus a fan-out channel.
type TickStore interface {
	PublishTick(ctx context.Context, tick models.PriceTick) error
	GetTick(ctx context.Context, symbol string) (*models.PriceTick, error)
}

// SnapshotWriter persists periodic samples used for charting.
type SnapshotWriter interface {
	SaveSnapshots(ctx context.Context, snapshots []models.PriceSnapshot) error
}

type EngineConfig struct {
	TickInterval     time.Duration
	SnapshotInterval time.Duration
	// Seed makes the generated paths reproducible when non-zero.
	Seed uint64
}

type instrumentState struct {
	cfg   InstrumentConfig
	model Model
	rng   *rand.Rand
	price float64
}

// Engine produces one tick per instrument per interval.
type Engine struct {
	store     TickStore
	snapshots SnapshotWriter
	config    EngineConfig
	logger    *zap.Logger
	metrics   MetricsCollector

	instruments []*instrumentState

	mu     sync.RWMutex
	latest map[string]models.PriceTick
}

func NewEngine(
	catalog []InstrumentConfig,
	store TickStore,
	snapshots SnapshotWriter,
	config EngineConfig,
	log *zap.Logger,
	metrics MetricsCollector,
) (*Engine, error) {
	if store == nil {
		panic("tick store is required")
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Second
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	states := make([]*instrumentState, 0, len(catalog))
	for i, cfg := range catalog {
		m, err := newModel(cfg)
		if err != nil {
			return nil, err
		}
		states = append(states, &instrumentState{
			cfg:   cfg,
			model: m,
			rng:   rand.New(rand.NewPCG(seed, uint64(i)+1)),
			price: cfg.BasePrice,
		})
	}

	return &Engine{
		store:       store,
		snapshots:   snapshots,
		config:      config,
		logger:      logger.OrNop(log).Named("pricing"),
		metrics:     metrics,
		instruments: states,
		latest:      make(map[string]models.PriceTick, len(states)),
	}, nil
}

// Warm resumes each instrument from its cached price so restarts do not jump back to base.
func (e *Engine) Warm(ctx context.Context) {
	for _, s := range e.instruments {
		tick, err := e.store.GetTick(ctx, s.cfg.Symbol)
		if err != nil || tick == nil {
			continue
		}
		if p, _ := tick.Price.Float64(); p > 0 {
			s.price = p
		}
	}
}

// Run ticks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	var snapshotC <-chan time.Time
	if e.snapshots != nil && e.config.SnapshotInterval > 0 {
		st := time.NewTicker(e.config.SnapshotInterval)
		defer st.Stop()
		snapshotC = st.C
	}

	e.logger.Info("price engine started",
		zap.Int("instruments", len(e.instruments)),
		zap.Duration("interval", e.config.TickInterval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("price engine stopped")
			return ctx.Err()
		case now := <-ticker.C:
			e.Step(ctx, now)
		case now := <-snapshotC:
			e.snapshot(ctx, now)
		}
	}
}

// Step advances every instrument by one tick. A failure on one instrument is
// logged and does not affect the others.
func (e *Engine) Step(ctx context.Context, now time.Time) {
	for _, s := range e.instruments {
		if err := e.stepInstrument(ctx, s, now); err != nil {
			e.metrics.RecordTickError(s.cfg.Symbol)
			e.logger.Warn("tick failed", zap.String("symbol", s.cfg.Symbol), zap.Error(err))
		}
	}
}

func (e *Engine) stepInstrument(ctx context.Context, s *instrumentState, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panic: %v", r)
		}
	}()

	next := s.model.Next(s.rng, s.price)
	if next <= 0 {
		return fmt.Errorf("non-positive price %f", next)
	}
	s.price = next

	tick := s.quote(now)
	e.mu.Lock()
	e.latest[tick.Symbol] = tick
	e.mu.Unlock()

	if err := e.store.PublishTick(ctx, tick); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	e.metrics.RecordTick(tick.Symbol)
	return nil
}

func (e *Engine) snapshot(ctx context.Context, now time.Time) {
	captured := now.UTC().Truncate(time.Second)
	e.mu.RLock()
	rows := make([]models.PriceSnapshot, 0, len(e.latest))
	for _, tick := range e.latest {
		rows = append(rows, models.PriceSnapshot{
			Symbol:     tick.Symbol,
			Price:      tick.Price,
			Source:     "simulator",
			CapturedAt: captured,
		})
	}
	e.mu.RUnlock()

	if len(rows) == 0 {
		return
	}
	if err := e.snapshots.SaveSnapshots(ctx, rows); err != nil {
		e.logger.Warn("snapshot write failed", zap.Error(err))
	}
}

// Latest returns the last tick generated in this process for symbol.
func (e *Engine) Latest(symbol string) (models.PriceTick, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.latest[symbol]
	return t, ok
}

func (s *instrumentState) quote(now time.Time) models.PriceTick {
	d := s.cfg.Decimals
	price := decimal.NewFromFloat(s.price).Round(d)
	half := decimal.NewFromFloat(s.price * s.cfg.Volatility * spreadFactor).Round(d)
	if minHalf := decimal.New(1, -d); half.LessThan(minHalf) {
		half = minHalf
	}
	ms := now.UnixMilli()
	return models.PriceTick{
		Symbol:    s.cfg.Symbol,
		Price:     price,
		Bid:       price.Sub(half),
		Ask:       price.Add(half),
		Timestamp: ms,
		UpdatedAt: ms,
	}
}
