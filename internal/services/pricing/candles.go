package pricing

import (
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"stakeoption/internal/models"
)

var candleIntervals = map[string]int64{
	"1min":  60,
	"5min":  300,
	"15min": 900,
	"30min": 1800,
	"1h":    3600,
	"4h":    14400,
	"1day":  86400,
}

// IntervalSeconds maps a chart interval name to its bucket width, defaulting to one minute.
func IntervalSeconds(interval string) int64 {
	if s, ok := candleIntervals[interval]; ok {
		return s
	}
	return 60
}

// BuildCandles buckets snapshots (ascending by time) into OHLC bars.
func BuildCandles(snapshots []models.PriceSnapshot, intervalSeconds int64) []models.Candle {
	if intervalSeconds <= 0 {
		intervalSeconds = 60
	}
	var candles []models.Candle
	for _, s := range snapshots {
		bucket := s.CapturedAt.Unix() / intervalSeconds * intervalSeconds
		n := len(candles)
		if n > 0 && candles[n-1].Time == bucket {
			c := &candles[n-1]
			c.High = decimal.Max(c.High, s.Price)
			c.Low = decimal.Min(c.Low, s.Price)
			c.Close = s.Price
			continue
		}
		candles = append(candles, models.Candle{
			Time:  bucket,
			Open:  s.Price,
			High:  s.Price,
			Low:   s.Price,
			Close: s.Price,
		})
	}
	return candles
}

// SyntheticCandles backfills a chart by running the instrument's own model
// forward from a point limit intervals ago, ending at now.
func SyntheticCandles(cfg InstrumentConfig, from float64, intervalSeconds int64, limit int, now time.Time, seed uint64) ([]models.Candle, error) {
	m, err := newModel(cfg)
	if err != nil {
		return nil, err
	}
	if from <= 0 {
		from = cfg.BasePrice
	}
	if intervalSeconds <= 0 {
		intervalSeconds = 60
	}
	r := rand.New(rand.NewPCG(seed, uint64(intervalSeconds)))

	// A handful of model ticks per bar keeps the bars shaped like real ones.
	const ticksPerCandle = 12
	end := now.Unix() / intervalSeconds * intervalSeconds
	price := from
	candles := make([]models.Candle, 0, limit)
	for i := limit - 1; i >= 0; i-- {
		open, high, low := price, price, price
		for j := 0; j < ticksPerCandle; j++ {
			price = m.Next(r, price)
			high = max(high, price)
			low = min(low, price)
		}
		d := cfg.Decimals
		candles = append(candles, models.Candle{
			Time:  end - int64(i)*intervalSeconds,
			Open:  decimal.NewFromFloat(open).Round(d),
			High:  decimal.NewFromFloat(high).Round(d),
			Low:   decimal.NewFromFloat(low).Round(d),
			Close: decimal.NewFromFloat(price).Round(d),
		})
	}
	return candles, nil
}
