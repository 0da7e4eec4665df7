package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DirectionUp   = "UP"
	DirectionDown = "DOWN"
)

const (
	TradeStatusActive    = "active"
	TradeStatusSettled   = "settled"
	TradeStatusCancelled = "cancelled"
	TradeStatusError     = "error"
)

const (
	TradeResultWin  = "win"
	TradeResultLoss = "loss"
	TradeResultDraw = "draw"
)

// Trade is one stake. EntryPrice is fixed at placement; the settlement
// transition fills ExitPrice, Result, Profit and SettledAt exactly once.
type Trade struct {
	ID                  uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID           `gorm:"type:uuid;not null;index:idx_trades_user_status" json:"user_id"`
	InstrumentID        uuid.UUID           `gorm:"type:uuid;not null;index" json:"asset_id"`
	Symbol              string              `gorm:"size:20;not null" json:"asset_symbol"`
	IsDemo              bool                `gorm:"not null;default:false" json:"is_demo"`
	Direction           string              `gorm:"size:4;not null" json:"direction"`
	Amount              decimal.Decimal     `gorm:"type:numeric(15,2);not null" json:"amount"`
	PayoutRate          decimal.Decimal     `gorm:"type:numeric(5,2);not null" json:"payout_rate"`
	EntryPrice          decimal.Decimal     `gorm:"type:numeric(20,8);not null" json:"entry_price"`
	ExitPrice           decimal.NullDecimal `gorm:"type:numeric(20,8)" json:"exit_price"`
	TimeframeSeconds    int                 `gorm:"not null" json:"timeframe_seconds"`
	ExpiresAt           time.Time           `gorm:"not null;index" json:"expires_at"`
	SettledAt           *time.Time          `json:"settled_at"`
	Result              *string             `gorm:"size:10" json:"result"`
	Profit              decimal.NullDecimal `gorm:"type:numeric(15,2)" json:"profit"`
	Status              string              `gorm:"size:20;not null;default:'active';index:idx_trades_user_status" json:"status"`
	TransactionDebitID  *uuid.UUID          `gorm:"type:uuid" json:"transaction_debit_id,omitempty"`
	TransactionCreditID *uuid.UUID          `gorm:"type:uuid" json:"transaction_credit_id,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

func (t *Trade) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
