package market

import (
	"context"
	"testing"
	"time"

	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/models"
	"stakeoption/internal/services/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockInstruments struct {
	mock.Mock
}

func (m *MockInstruments) ListActive(ctx context.Context, category string) ([]models.Instrument, error) {
	args := m.Called(ctx, category)
	res, _ := args.Get(0).([]models.Instrument)
	return res, args.Error(1)
}

func (m *MockInstruments) GetBySymbol(ctx context.Context, symbol string) (*models.Instrument, error) {
	args := m.Called(ctx, symbol)
	res, _ := args.Get(0).(*models.Instrument)
	return res, args.Error(1)
}

type MockPrices struct {
	mock.Mock
}

func (m *MockPrices) GetTick(ctx context.Context, symbol string) (*models.PriceTick, error) {
	args := m.Called(ctx, symbol)
	res, _ := args.Get(0).(*models.PriceTick)
	return res, args.Error(1)
}

func (m *MockPrices) GetTicks(ctx context.Context, symbols []string) (map[string]models.PriceTick, error) {
	args := m.Called(ctx, symbols)
	res, _ := args.Get(0).(map[string]models.PriceTick)
	return res, args.Error(1)
}

type MockSnapshots struct {
	mock.Mock
}

func (m *MockSnapshots) Since(ctx context.Context, symbol string, since time.Time, limit int) ([]models.PriceSnapshot, error) {
	args := m.Called(ctx, symbol, since, limit)
	res, _ := args.Get(0).([]models.PriceSnapshot)
	return res, args.Error(1)
}

func (m *MockSnapshots) Prune(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)

func newService(t *testing.T) (*Service, *MockInstruments, *MockPrices, *MockSnapshots) {
	t.Helper()
	catalog, err := pricing.LoadCatalog("")
	require.NoError(t, err)
	instruments, prices, snapshots := new(MockInstruments), new(MockPrices), new(MockSnapshots)
	s := NewService(instruments, prices, snapshots, catalog, nil)
	s.now = func() time.Time { return fixedNow }
	return s, instruments, prices, snapshots
}

func TestListAssetsAttachesQuotes(t *testing.T) {
	s, instruments, prices, _ := newService(t)
	instruments.On("ListActive", mock.Anything, "velocity").Return([]models.Instrument{{Symbol: "V10"}, {Symbol: "V25"}}, nil)
	prices.On("GetTicks", mock.Anything, []string{"V10", "V25"}).
		Return(map[string]models.PriceTick{"V10": {Symbol: "V10", Price: decimal.NewFromInt(5000)}}, nil)

	assets, err := s.ListAssets(context.Background(), "Velocity")
	require.NoError(t, err)
	require.Len(t, assets, 2)
	require.NotNil(t, assets[0].CurrentPrice)
	assert.True(t, assets[0].CurrentPrice.Price.Equal(decimal.NewFromInt(5000)))
	assert.Nil(t, assets[1].CurrentPrice)
}

func TestGetPrice(t *testing.T) {
	s, instruments, prices, _ := newService(t)
	instruments.On("GetBySymbol", mock.Anything, "V10").Return(&models.Instrument{Symbol: "V10"}, nil)
	instruments.On("GetBySymbol", mock.Anything, "NOPE").Return(nil, appErrors.ErrAssetNotFound)
	prices.On("GetTick", mock.Anything, "V10").Return(nil, nil)

	_, err := s.GetPrice(context.Background(), "V10")
	assert.ErrorIs(t, err, appErrors.ErrPriceUnavailable)

	_, err = s.GetPrice(context.Background(), "NOPE")
	assert.ErrorIs(t, err, appErrors.ErrAssetNotFound)
}

func TestGetPricesDedupesSymbols(t *testing.T) {
	s, _, prices, _ := newService(t)
	prices.On("GetTicks", mock.Anything, []string{"V10", "V25"}).Return(map[string]models.PriceTick{}, nil)

	_, err := s.GetPrices(context.Background(), []string{"V10", " V25", "V10", ""})
	require.NoError(t, err)
	prices.AssertExpectations(t)
}

func TestGetCandlesFromSnapshots(t *testing.T) {
	s, instruments, _, snapshots := newService(t)
	instruments.On("GetBySymbol", mock.Anything, "V10").Return(&models.Instrument{Symbol: "V10"}, nil)

	base := fixedNow.Truncate(time.Minute).Add(-3 * time.Minute)
	var rows []models.PriceSnapshot
	for i := 0; i < 18; i++ {
		rows = append(rows, models.PriceSnapshot{
			Symbol:     "V10",
			Price:      decimal.NewFromInt(int64(5000 + i)),
			CapturedAt: base.Add(time.Duration(i*10) * time.Second),
		})
	}
	snapshots.On("Since", mock.Anything, "V10", fixedNow.Add(-2*time.Minute), maxSnapshots).Return(rows, nil)

	candles, err := s.GetCandles(context.Background(), "V10", "1min", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	last := candles[1]
	assert.True(t, last.Open.Equal(decimal.NewFromInt(5012)))
	assert.True(t, last.Close.Equal(decimal.NewFromInt(5017)))
}

func TestGetCandlesBackfillsWhenSparse(t *testing.T) {
	s, instruments, prices, snapshots := newService(t)
	instruments.On("GetBySymbol", mock.Anything, "V10").Return(&models.Instrument{Symbol: "V10"}, nil)
	snapshots.On("Since", mock.Anything, "V10", mock.Anything, maxSnapshots).Return([]models.PriceSnapshot{}, nil)
	prices.On("GetTick", mock.Anything, "V10").Return(&models.PriceTick{Symbol: "V10", Price: decimal.NewFromInt(5100)}, nil)

	first, err := s.GetCandles(context.Background(), "V10", "5min", 30)
	require.NoError(t, err)
	assert.Len(t, first, 30)

	again, err := s.GetCandles(context.Background(), "V10", "5min", 30)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestGetCandlesClampsLimit(t *testing.T) {
	s, instruments, prices, snapshots := newService(t)
	instruments.On("GetBySymbol", mock.Anything, "V10").Return(&models.Instrument{Symbol: "V10"}, nil)
	snapshots.On("Since", mock.Anything, "V10", mock.Anything, maxSnapshots).Return([]models.PriceSnapshot{}, nil)
	prices.On("GetTick", mock.Anything, "V10").Return(nil, nil)

	candles, err := s.GetCandles(context.Background(), "V10", "1h", 5000)
	require.NoError(t, err)
	assert.Len(t, candles, maxCandleLimit)
}

func TestPruneSnapshots(t *testing.T) {
	s, _, _, snapshots := newService(t)
	snapshots.On("Prune", mock.Anything, fixedNow.Add(-48*time.Hour)).Return(int64(12), nil)

	n, err := s.PruneSnapshots(context.Background(), 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}
