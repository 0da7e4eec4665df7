package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const DefaultCurrency = "KES"

// Wallet balances are only changed by the ledger service.
type Wallet struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_user_wallet" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"balance"`
	Currency  string          `gorm:"size:3;not null;default:'KES';uniqueIndex:uq_user_wallet" json:"currency"`
	IsLocked  bool            `gorm:"not null;default:false" json:"is_locked"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Currency == "" {
		w.Currency = DefaultCurrency
	}
	return nil
}
