package repositories

import (
	"context"
	"time"

	"stakeoption/internal/models"

	"github.com/google/uuid"
)

// TradeFilter narrows trade history. Nil pointers match everything.
type TradeFilter struct {
	IsDemo       *bool
	Result       string
	InstrumentID *uuid.UUID
	Offset       int
	Limit        int
}

// DueTrade is the minimum the settlement queue needs to re-register a trade.
type DueTrade struct {
	ID        uuid.UUID
	ExpiresAt time.Time
}

// TradeRepository holds the read side of trades. Writes happen inside the
// trade service transactions.
type TradeRepository interface {
	// GetForUser returns the trade only when it belongs to userID
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Trade, error)

	ListActive(ctx context.Context, userID uuid.UUID, isDemo *bool) ([]models.Trade, error)

	// History returns settled trades, newest first, with the total match count
	History(ctx context.Context, userID uuid.UUID, filter TradeFilter) ([]models.Trade, int64, error)

	// ListAllActive returns every active trade for due-queue reconciliation
	ListAllActive(ctx context.Context) ([]DueTrade, error)
}
