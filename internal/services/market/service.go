// Package market serves the read side of the price feed: the asset list,
// current quotes and chart candles.
package market

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/logger"
	"stakeoption/internal/models"
	"stakeoption/internal/services/pricing"

	"go.uber.org/zap"
)

const (
	defaultCandleLimit = 100
	maxCandleLimit     = 500
	// Below this many stored samples the chart is backfilled from the model.
	minSnapshots  = 10
	maxSnapshots  = 10000
	maxPriceBatch = 50
)

type InstrumentReader interface {
	ListActive(ctx context.Context, category string) ([]models.Instrument, error)
	GetBySymbol(ctx context.Context, symbol string) (*models.Instrument, error)
}

type PriceReader interface {
	GetTick(ctx context.Context, symbol string) (*models.PriceTick, error)
	GetTicks(ctx context.Context, symbols []string) (map[string]models.PriceTick, error)
}

type SnapshotStore interface {
	Since(ctx context.Context, symbol string, since time.Time, limit int) ([]models.PriceSnapshot, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Asset is an instrument with its latest quote, if one is cached.
type Asset struct {
	models.Instrument
	CurrentPrice *models.PriceTick `json:"current_price"`
}

type Service struct {
	instruments InstrumentReader
	prices      PriceReader
	snapshots   SnapshotStore
	catalog     map[string]pricing.InstrumentConfig
	log         *zap.Logger
	now         func() time.Time
}

func NewService(instruments InstrumentReader, prices PriceReader, snapshots SnapshotStore, catalog []pricing.InstrumentConfig, log *zap.Logger) *Service {
	bySymbol := make(map[string]pricing.InstrumentConfig, len(catalog))
	for _, c := range catalog {
		bySymbol[c.Symbol] = c
	}
	return &Service{
		instruments: instruments,
		prices:      prices,
		snapshots:   snapshots,
		catalog:     bySymbol,
		log:         logger.OrNop(log).Named("market"),
		now:         time.Now,
	}
}

// ListAssets returns the active instruments, optionally for one category.
func (s *Service) ListAssets(ctx context.Context, category string) ([]Asset, error) {
	instruments, err := s.instruments.ListActive(ctx, strings.ToLower(category))
	if err != nil {
		return nil, err
	}
	symbols := make([]string, len(instruments))
	for i, in := range instruments {
		symbols[i] = in.Symbol
	}
	ticks, err := s.prices.GetTicks(ctx, symbols)
	if err != nil {
		// The list is still useful without quotes.
		s.log.Warn("failed to read quotes for asset list", zap.Error(err))
		ticks = nil
	}

	assets := make([]Asset, len(instruments))
	for i, in := range instruments {
		assets[i] = Asset{Instrument: in}
		if t, ok := ticks[in.Symbol]; ok {
			tick := t
			assets[i].CurrentPrice = &tick
		}
	}
	return assets, nil
}

// GetPrice returns the cached quote for a known symbol.
func (s *Service) GetPrice(ctx context.Context, symbol string) (*models.PriceTick, error) {
	if _, err := s.instruments.GetBySymbol(ctx, symbol); err != nil {
		return nil, err
	}
	tick, err := s.prices.GetTick(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if tick == nil {
		return nil, appErrors.ErrPriceUnavailable
	}
	return tick, nil
}

// GetPrices returns the cached quotes for symbols. Unknown or stale symbols
// are left out.
func (s *Service) GetPrices(ctx context.Context, symbols []string) (map[string]models.PriceTick, error) {
	clean := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		sym = strings.TrimSpace(sym)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		clean = append(clean, sym)
		if len(clean) == maxPriceBatch {
			break
		}
	}
	return s.prices.GetTicks(ctx, clean)
}

// GetCandles builds chart bars from stored samples. When too few samples
// exist the instrument's model generates a plausible history instead; those
// bars are for display only.
func (s *Service) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if _, err := s.instruments.GetBySymbol(ctx, symbol); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultCandleLimit
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}
	width := pricing.IntervalSeconds(interval)
	now := s.now()
	since := now.Add(-time.Duration(int64(limit)*width) * time.Second)

	snapshots, err := s.snapshots.Since(ctx, symbol, since, maxSnapshots)
	if err != nil {
		return nil, err
	}
	if len(snapshots) >= minSnapshots {
		candles := pricing.BuildCandles(snapshots, width)
		if len(candles) > limit {
			candles = candles[len(candles)-limit:]
		}
		return candles, nil
	}
	return s.syntheticCandles(ctx, symbol, width, limit, now)
}

func (s *Service) syntheticCandles(ctx context.Context, symbol string, width int64, limit int, now time.Time) ([]models.Candle, error) {
	cfg, ok := s.catalog[symbol]
	if !ok {
		return []models.Candle{}, nil
	}
	from := cfg.BasePrice
	if tick, err := s.prices.GetTick(ctx, symbol); err == nil && tick != nil {
		from = tick.Price.InexactFloat64()
	}
	return pricing.SyntheticCandles(cfg, from, width, limit, now, seedFor(symbol, now.Unix()/width))
}

// seedFor keeps a backfilled chart stable while its newest bar is open.
func seedFor(symbol string, bucket int64) uint64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return h.Sum64() ^ uint64(bucket)
}

// PruneSnapshots removes samples older than retention.
func (s *Service) PruneSnapshots(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.snapshots.Prune(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("pruned price snapshots", zap.Int64("rows", n))
	}
	return n, nil
}

// RunRetention prunes on every tick of interval until ctx is cancelled.
func (s *Service) RunRetention(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.PruneSnapshots(ctx, retention); err != nil {
				s.log.Warn("snapshot pruning failed", zap.Error(err))
			}
		}
	}
}
