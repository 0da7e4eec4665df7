package repositories

import (
	"context"

	"stakeoption/internal/models"

	"github.com/google/uuid"
)

// InstrumentRepository reads the tradable asset list.
type InstrumentRepository interface {
	// ListActive returns active instruments ordered for display; an empty
	// category returns all of them
	ListActive(ctx context.Context, category string) ([]models.Instrument, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.Instrument, error)
	GetBySymbol(ctx context.Context, symbol string) (*models.Instrument, error)

	// Sync upserts catalog entries keyed by symbol
	Sync(ctx context.Context, instruments []models.Instrument) error
}
