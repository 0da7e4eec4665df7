package repositories

import (
	"context"
	"errors"
	"fmt"

	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type instrumentRepository struct {
	db *gorm.DB
}

func NewInstrumentRepository(db *gorm.DB) InstrumentRepository {
	return &instrumentRepository{db: db}
}

func (r *instrumentRepository) ListActive(ctx context.Context, category string) ([]models.Instrument, error) {
	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var out []models.Instrument
	if err := q.Order("sort_order ASC, symbol ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	return out, nil
}

func (r *instrumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Instrument, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *instrumentRepository) GetBySymbol(ctx context.Context, symbol string) (*models.Instrument, error) {
	return r.first(ctx, "symbol = ?", symbol)
}

func (r *instrumentRepository) Sync(ctx context.Context, instruments []models.Instrument) error {
	if len(instruments) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "category", "model", "payout_rate", "min_trade", "max_trade",
			"is_active", "sort_order", "updated_at",
		}),
	}).Create(&instruments).Error
	if err != nil {
		return fmt.Errorf("failed to sync instruments: %w", err)
	}
	return nil
}

func (r *instrumentRepository) first(ctx context.Context, query string, arg interface{}) (*models.Instrument, error) {
	var inst models.Instrument
	err := r.db.WithContext(ctx).Where(query, arg).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	return &inst, nil
}
