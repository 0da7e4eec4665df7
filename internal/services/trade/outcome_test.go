package trade

import (
	"testing"
	"time"

	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		entry     string
		exit      string
		result    string
		profit    string
		payout    string
	}{
		{"up win", models.DirectionUp, "100.00000", "100.00500", models.TradeResultWin, "425.00", "925.00"},
		{"up loss", models.DirectionUp, "100.00000", "99.99500", models.TradeResultLoss, "-500", "0"},
		{"down win", models.DirectionDown, "100.00000", "99.99500", models.TradeResultWin, "425.00", "925.00"},
		{"down loss", models.DirectionDown, "100.00000", "100.00500", models.TradeResultLoss, "-500", "0"},
		{"up draw", models.DirectionUp, "100.00000", "100", models.TradeResultDraw, "0", "500"},
		{"down draw", models.DirectionDown, "5012.34", "5012.34", models.TradeResultDraw, "0", "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Decide(tt.direction, dec(tt.entry), dec(tt.exit), dec("500"), dec("85"))
			assert.Equal(t, tt.result, out.Result)
			assert.True(t, out.Profit.Equal(dec(tt.profit)), "profit = %s", out.Profit)
			assert.True(t, out.Payout.Equal(dec(tt.payout)), "payout = %s", out.Payout)
		})
	}
}

func TestDecideRoundsProfitToCents(t *testing.T) {
	out := Decide(models.DirectionUp, dec("1"), dec("2"), dec("333.33"), dec("85"))
	assert.Equal(t, "283.33", out.Profit.StringFixed(2))
	assert.True(t, out.Payout.Equal(dec("616.66")))
}

func TestEntryAndExitPricesMirrorSpread(t *testing.T) {
	tick := &models.PriceTick{Bid: dec("99.5"), Price: dec("100"), Ask: dec("100.5")}

	assert.True(t, entryPrice(models.DirectionUp, tick).Equal(tick.Ask))
	assert.True(t, entryPrice(models.DirectionDown, tick).Equal(tick.Bid))
	assert.True(t, exitPrice(models.DirectionUp, tick).Equal(tick.Bid))
	assert.True(t, exitPrice(models.DirectionDown, tick).Equal(tick.Ask))

	// Settling against the same quote loses the spread in both directions.
	for _, dir := range []string{models.DirectionUp, models.DirectionDown} {
		out := Decide(dir, entryPrice(dir, tick), exitPrice(dir, tick), dec("100"), dec("85"))
		assert.Equal(t, models.TradeResultLoss, out.Result, dir)
	}
}

func TestValidateRequest(t *testing.T) {
	base := PlaceRequest{Direction: models.DirectionUp, Amount: dec("100"), TimeframeSeconds: 60}

	assert.NoError(t, validateRequest(base))

	bad := base
	bad.Direction = "SIDEWAYS"
	assert.ErrorIs(t, validateRequest(bad), appErrors.ErrInvalidDirection)

	bad = base
	bad.TimeframeSeconds = 45
	assert.ErrorIs(t, validateRequest(bad), appErrors.ErrInvalidTimeframe)

	bad = base
	bad.Amount = decimal.Zero
	assert.ErrorIs(t, validateRequest(bad), appErrors.ErrInvalidAmount)

	for _, tf := range Timeframes {
		ok := base
		ok.TimeframeSeconds = tf
		assert.NoError(t, validateRequest(ok), tf)
	}
}

func TestValidateStake(t *testing.T) {
	inst := &models.Instrument{MinTrade: dec("50"), MaxTrade: dec("100000")}

	assert.NoError(t, validateStake(inst, dec("50")))
	assert.NoError(t, validateStake(inst, dec("100000")))
	assert.ErrorIs(t, validateStake(inst, dec("49.99")), appErrors.ErrBelowMinTrade)
	assert.ErrorIs(t, validateStake(inst, dec("100000.01")), appErrors.ErrAboveMaxTrade)
	assert.ErrorIs(t, validateStake(inst, dec("50.005")), appErrors.ErrInvalidAmount)
}

func TestBuildTrade(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inst := &models.Instrument{ID: uuid.New(), Symbol: "V75", PayoutRate: dec("85")}
	tick := &models.PriceTick{Symbol: "V75", Bid: dec("4999.75"), Price: dec("5000"), Ask: dec("5000.25")}
	req := PlaceRequest{
		UserID:           uuid.New(),
		InstrumentID:     inst.ID,
		Direction:        models.DirectionDown,
		Amount:           dec("250"),
		TimeframeSeconds: 300,
		IsDemo:           true,
	}

	trade := buildTrade(req, inst, tick, now)
	require.NotNil(t, trade)
	assert.NotEqual(t, uuid.Nil, trade.ID)
	assert.Equal(t, "V75", trade.Symbol)
	assert.True(t, trade.EntryPrice.Equal(tick.Bid))
	assert.True(t, trade.PayoutRate.Equal(dec("85")))
	assert.Equal(t, now.Add(5*time.Minute), trade.ExpiresAt)
	assert.Equal(t, models.TradeStatusActive, trade.Status)
	assert.True(t, trade.IsDemo)
	assert.Nil(t, trade.TransactionDebitID)
}
