package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is the trading account owner. Credentials live with the auth service;
// this row carries what the trading core needs.
type User struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Phone       string          `gorm:"size:15;uniqueIndex;not null" json:"phone"`
	Role        string          `gorm:"size:20;not null;default:'user'" json:"role"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`
	DemoBalance decimal.Decimal `gorm:"type:numeric(15,2);not null;default:10000" json:"demo_balance"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
