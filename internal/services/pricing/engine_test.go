package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeoption/internal/models"
)

type memoryTickStore struct {
	mu      sync.Mutex
	ticks   map[string]models.PriceTick
	failFor string
}

func newMemoryTickStore() *memoryTickStore {
	return &memoryTickStore{ticks: map[string]models.PriceTick{}}
}

func (s *memoryTickStore) PublishTick(_ context.Context, tick models.PriceTick) error {
	if tick.Symbol == s.failFor {
		return errors.New("redis down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks[tick.Symbol] = tick
	return nil
}

func (s *memoryTickStore) GetTick(_ context.Context, symbol string) (*models.PriceTick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.ticks[symbol]; ok {
		return &t, nil
	}
	return nil, nil
}

type memorySnapshots struct {
	rows []models.PriceSnapshot
}

func (m *memorySnapshots) SaveSnapshots(_ context.Context, rows []models.PriceSnapshot) error {
	m.rows = append(m.rows, rows...)
	return nil
}

func testCatalog() []InstrumentConfig {
	return []InstrumentConfig{
		{Symbol: "V10", Model: ModelVelocity, BasePrice: 5000, Volatility: 0.0001, Decimals: 2},
		{Symbol: "CRASH-500", Model: ModelCrash, BasePrice: 6000, Volatility: 0.0003, Decimals: 2},
		{Symbol: "STEP-100", Model: ModelStep, BasePrice: 5000, Volatility: 0.00002, Decimals: 2, Params: ModelParams{StepSize: 0.1}},
	}
}

func TestEngineStepPublishesEveryInstrument(t *testing.T) {
	store := newMemoryTickStore()
	e, err := NewEngine(testCatalog(), store, nil, EngineConfig{Seed: 1}, nil, nil)
	require.NoError(t, err)

	now := time.UnixMilli(1_700_000_000_000)
	e.Step(context.Background(), now)

	require.Len(t, store.ticks, 3)
	for symbol, tick := range store.ticks {
		assert.Equal(t, now.UnixMilli(), tick.Timestamp, symbol)
		assert.True(t, tick.Bid.LessThan(tick.Price), symbol)
		assert.True(t, tick.Ask.GreaterThan(tick.Price), symbol)
		assert.True(t, tick.Ask.Sub(tick.Price).Equal(tick.Price.Sub(tick.Bid)), "spread is symmetric")
		assert.LessOrEqual(t, tick.Price.Exponent(), int32(0))
		assert.GreaterOrEqual(t, tick.Price.Exponent(), int32(-2), "rounded to two places")
	}
}

func TestEngineIsolatesFailingInstrument(t *testing.T) {
	store := newMemoryTickStore()
	store.failFor = "CRASH-500"
	e, err := NewEngine(testCatalog(), store, nil, EngineConfig{Seed: 1}, nil, nil)
	require.NoError(t, err)

	e.Step(context.Background(), time.Now())

	assert.Contains(t, store.ticks, "V10")
	assert.Contains(t, store.ticks, "STEP-100")
	assert.NotContains(t, store.ticks, "CRASH-500")
	_, ok := e.Latest("CRASH-500")
	assert.True(t, ok, "generation continues even when publishing fails")
}

func TestEngineWarmResumesFromCache(t *testing.T) {
	store := newMemoryTickStore()
	store.ticks["V10"] = models.PriceTick{Symbol: "V10", Price: decimal.RequireFromString("5400")}
	e, err := NewEngine(testCatalog(), store, nil, EngineConfig{Seed: 3}, nil, nil)
	require.NoError(t, err)

	e.Warm(context.Background())
	e.Step(context.Background(), time.Now())

	tick, ok := e.Latest("V10")
	require.True(t, ok)
	assert.InDelta(t, 5400, tick.Price.InexactFloat64(), 50)
}

func TestEngineSnapshot(t *testing.T) {
	store := newMemoryTickStore()
	snaps := &memorySnapshots{}
	e, err := NewEngine(testCatalog(), store, snaps, EngineConfig{Seed: 1}, nil, nil)
	require.NoError(t, err)

	now := time.Now()
	e.Step(context.Background(), now)
	e.snapshot(context.Background(), now)

	require.Len(t, snaps.rows, 3)
	for _, row := range snaps.rows {
		tick, _ := e.Latest(row.Symbol)
		assert.True(t, row.Price.Equal(tick.Price))
		assert.Equal(t, now.UTC().Truncate(time.Second), row.CapturedAt)
	}
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	store := newMemoryTickStore()
	e, err := NewEngine(testCatalog(), store, nil, EngineConfig{TickInterval: 5 * time.Millisecond, Seed: 1}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err = e.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.ticks, 3)
}
