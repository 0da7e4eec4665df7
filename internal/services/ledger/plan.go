package ledger

import (
	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/models"

	"github.com/shopspring/decimal"
)

// movement is the arithmetic of one journal line before it is written.
type movement struct {
	Before decimal.Decimal
	After  decimal.Decimal
	Amount decimal.Decimal // signed
}

// ValidAmount reports whether amount is positive and in whole cents. Money
// columns are numeric(15,2) and round each column on write, so a finer amount
// would break balance_before + amount == balance_after.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

func planCredit(w *models.Wallet, amount decimal.Decimal) (movement, error) {
	if !ValidAmount(amount) {
		return movement{}, appErrors.ErrInvalidAmount
	}
	return movement{
		Before: w.Balance,
		After:  w.Balance.Add(amount),
		Amount: amount,
	}, nil
}

func planDebit(w *models.Wallet, amount decimal.Decimal) (movement, error) {
	if !ValidAmount(amount) {
		return movement{}, appErrors.ErrInvalidAmount
	}
	if w.IsLocked {
		return movement{}, appErrors.ErrWalletLocked
	}
	if w.Balance.LessThan(amount) {
		return movement{}, appErrors.ErrInsufficientBalance
	}
	return movement{
		Before: w.Balance,
		After:  w.Balance.Sub(amount),
		Amount: amount.Neg(),
	}, nil
}

// planReversal only accepts a withdrawal still held in processing.
func planReversal(w *models.Wallet, original *models.Transaction) (movement, error) {
	if original == nil ||
		original.WalletID != w.ID ||
		original.Type != models.TransactionTypeWithdrawal ||
		original.Status != models.TransactionStatusProcessing {
		return movement{}, appErrors.ErrNotReversible
	}
	return planCredit(w, original.Amount.Abs())
}
