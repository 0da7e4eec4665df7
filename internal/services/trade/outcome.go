package trade

import (
	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/models"
	"stakeoption/internal/services/ledger"

	"github.com/shopspring/decimal"
)

// Timeframes are the only expiries a trade can be placed with, in seconds.
var Timeframes = []int{30, 60, 300, 900, 1800, 3600}

var hundred = decimal.NewFromInt(100)

func validTimeframe(seconds int) bool {
	for _, tf := range Timeframes {
		if tf == seconds {
			return true
		}
	}
	return false
}

func validateStake(inst *models.Instrument, amount decimal.Decimal) error {
	if !ledger.ValidAmount(amount) {
		return appErrors.ErrInvalidAmount
	}
	if amount.LessThan(inst.MinTrade) {
		return appErrors.ErrBelowMinTrade
	}
	if amount.GreaterThan(inst.MaxTrade) {
		return appErrors.ErrAboveMaxTrade
	}
	return nil
}

// entryPrice charges the spread: UP buys at the ask, DOWN sells at the bid.
func entryPrice(direction string, tick *models.PriceTick) decimal.Decimal {
	if direction == models.DirectionUp {
		return tick.Ask
	}
	return tick.Bid
}

// exitPrice mirrors entryPrice.
func exitPrice(direction string, tick *models.PriceTick) decimal.Decimal {
	if direction == models.DirectionUp {
		return tick.Bid
	}
	return tick.Ask
}

// Outcome is the settled result of one trade. Payout is what goes back to the
// balance: amount+profit on a win, the stake on a draw, nothing on a loss.
type Outcome struct {
	Result string
	Profit decimal.Decimal
	Payout decimal.Decimal
}

// Decide applies the binary outcome rule. Equal prices are a draw.
func Decide(direction string, entry, exit, amount, payoutRate decimal.Decimal) Outcome {
	cmp := exit.Cmp(entry)
	if direction == models.DirectionDown {
		cmp = -cmp
	}
	switch {
	case cmp > 0:
		profit := amount.Mul(payoutRate).Div(hundred).Round(2)
		return Outcome{Result: models.TradeResultWin, Profit: profit, Payout: amount.Add(profit)}
	case cmp < 0:
		return Outcome{Result: models.TradeResultLoss, Profit: amount.Neg(), Payout: decimal.Zero}
	default:
		return Outcome{Result: models.TradeResultDraw, Profit: decimal.Zero, Payout: amount}
	}
}
