package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction types
const (
	TransactionTypeDeposit     = "deposit"
	TransactionTypeWithdrawal  = "withdrawal"
	TransactionTypeTradeDebit  = "trade_debit"
	TransactionTypeTradeCredit = "trade_credit"
	TransactionTypeBonus       = "bonus"
)

// Transaction statuses
const (
	TransactionStatusPending    = "pending"
	TransactionStatusProcessing = "processing"
	TransactionStatusCompleted  = "completed"
	TransactionStatusFailed     = "failed"
	TransactionStatusReversed   = "reversed"
)

// Transaction is one journal line. Amount is signed: debits are negative.
// BalanceAfter of entry n equals BalanceBefore of entry n+1 for the same wallet.
type Transaction struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	WalletID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"wallet_id"`
	Type              string          `gorm:"size:20;not null" json:"type"`
	Amount            decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	BalanceBefore     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"balance_before"`
	BalanceAfter      decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"balance_after"`
	Status            string          `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Reference         string          `gorm:"size:100;uniqueIndex;not null" json:"reference"`
	ExternalReference *string         `gorm:"size:100" json:"external_reference"`
	Metadata          JSON            `gorm:"type:jsonb" json:"metadata"`
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
