package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Instrument is a tradable synthetic asset. The generative model parameters live
// in the price catalog; this row carries what trading needs.
type Instrument struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Symbol     string          `gorm:"size:20;uniqueIndex;not null" json:"symbol"`
	Name       string          `gorm:"size:100;not null" json:"name"`
	Category   string          `gorm:"size:20;not null;index" json:"category"`
	Model      string          `gorm:"size:20;not null" json:"model"`
	PayoutRate decimal.Decimal `gorm:"type:numeric(5,2);not null;default:85" json:"payout_rate"`
	MinTrade   decimal.Decimal `gorm:"type:numeric(15,2);not null;default:50" json:"min_trade"`
	MaxTrade   decimal.Decimal `gorm:"type:numeric(15,2);not null;default:100000" json:"max_trade"`
	IsActive   bool            `gorm:"not null;default:true;index" json:"is_active"`
	SortOrder  int             `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (Instrument) TableName() string {
	return "assets"
}

func (i *Instrument) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
