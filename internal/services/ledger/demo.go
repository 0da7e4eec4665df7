package ledger

import (
	"errors"
	"fmt"

	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Demo balances live on the user row and carry no journal.

// DemoDebitTx takes a stake from the virtual balance.
func DemoDebitTx(tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !ValidAmount(amount) {
		return decimal.Zero, appErrors.ErrInvalidAmount
	}
	user, err := lockUser(tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if user.DemoBalance.LessThan(amount) {
		return decimal.Zero, appErrors.ErrInsufficientBalance
	}
	return setDemoBalance(tx, user.ID, user.DemoBalance.Sub(amount))
}

// DemoCreditTx pays a demo win or refund.
func DemoCreditTx(tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !ValidAmount(amount) {
		return decimal.Zero, appErrors.ErrInvalidAmount
	}
	user, err := lockUser(tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return setDemoBalance(tx, user.ID, user.DemoBalance.Add(amount))
}

// ResetDemoTx restores the virtual balance to the configured starting value.
func ResetDemoTx(tx *gorm.DB, userID uuid.UUID, initial decimal.Decimal) (decimal.Decimal, error) {
	user, err := lockUser(tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return setDemoBalance(tx, user.ID, initial)
}

func lockUser(tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return &user, nil
}

func setDemoBalance(tx *gorm.DB, userID uuid.UUID, balance decimal.Decimal) (decimal.Decimal, error) {
	if err := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("demo_balance", balance).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to update demo balance: %w", err)
	}
	return balance, nil
}

// DemoBalanceTx reads the virtual balance without locking.
func DemoBalanceTx(tx *gorm.DB, userID uuid.UUID) (decimal.Decimal, error) {
	var user models.User
	err := tx.Select("demo_balance").Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, appErrors.ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read demo balance: %w", err)
	}
	return user.DemoBalance, nil
}
