package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeoption/internal/models"
)

func snap(sec int64, price string) models.PriceSnapshot {
	return models.PriceSnapshot{Symbol: "V10", Price: decimal.RequireFromString(price), CapturedAt: time.Unix(sec, 0)}
}

func TestBuildCandles(t *testing.T) {
	rows := []models.PriceSnapshot{
		snap(600, "10"), snap(610, "12"), snap(650, "9"), snap(659, "11"),
		snap(660, "11.5"),
	}
	candles := BuildCandles(rows, 60)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.Equal(t, int64(600), first.Time)
	assert.Equal(t, "10", first.Open.String())
	assert.Equal(t, "12", first.High.String())
	assert.Equal(t, "9", first.Low.String())
	assert.Equal(t, "11", first.Close.String())

	assert.Equal(t, int64(660), candles[1].Time)
	assert.Equal(t, "11.5", candles[1].Close.String())
}

func TestIntervalSeconds(t *testing.T) {
	assert.Equal(t, int64(300), IntervalSeconds("5min"))
	assert.Equal(t, int64(86400), IntervalSeconds("1day"))
	assert.Equal(t, int64(60), IntervalSeconds("weird"))
}

func TestSyntheticCandles(t *testing.T) {
	cfg := InstrumentConfig{Symbol: "V10", Model: ModelVelocity, BasePrice: 5000, Volatility: 0.0001, Decimals: 2}
	now := time.Unix(1_700_000_030, 0)
	candles, err := SyntheticCandles(cfg, 5000, 60, 50, now, 9)
	require.NoError(t, err)
	require.Len(t, candles, 50)

	assert.Equal(t, now.Unix()/60*60, candles[49].Time)
	for i, c := range candles {
		assert.True(t, c.High.GreaterThanOrEqual(c.Open), i)
		assert.True(t, c.High.GreaterThanOrEqual(c.Close), i)
		assert.True(t, c.Low.LessThanOrEqual(c.Open), i)
		assert.True(t, c.Low.LessThanOrEqual(c.Close), i)
		if i > 0 {
			assert.Equal(t, int64(60), c.Time-candles[i-1].Time)
		}
	}
}
