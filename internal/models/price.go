package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is the cached quote for one instrument. Timestamps are epoch milliseconds.
type PriceTick struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Timestamp int64           `json:"timestamp"`
	UpdatedAt int64           `json:"updated_at"`
}

// PriceSnapshot is a periodic sample kept for charting only.
type PriceSnapshot struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	Symbol     string          `gorm:"size:20;not null;uniqueIndex:uq_price_snapshot;index:idx_price_snapshots_symbol_time"`
	Price      decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Source     string          `gorm:"size:20;not null;default:'simulator'"`
	CapturedAt time.Time       `gorm:"not null;uniqueIndex:uq_price_snapshot;index:idx_price_snapshots_symbol_time"`
}

// Candle is an OHLC bar; Time is the bucket start in epoch seconds.
type Candle struct {
	Time  int64           `json:"time"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}
