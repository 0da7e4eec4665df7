package repositories

import (
	"context"
	"errors"
	"fmt"

	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type tradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository(db *gorm.DB) TradeRepository {
	return &tradeRepository{db: db}
}

func (r *tradeRepository) GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Trade, error) {
	var trade models.Trade
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrTradeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return &trade, nil
}

func (r *tradeRepository) ListActive(ctx context.Context, userID uuid.UUID, isDemo *bool) ([]models.Trade, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.TradeStatusActive)
	if isDemo != nil {
		q = q.Where("is_demo = ?", *isDemo)
	}
	var trades []models.Trade
	if err := q.Order("expires_at ASC").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list active trades: %w", err)
	}
	return trades, nil
}

func (r *tradeRepository) History(ctx context.Context, userID uuid.UUID, f TradeFilter) ([]models.Trade, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Trade{}).
		Where("user_id = ? AND status = ?", userID, models.TradeStatusSettled)
	if f.IsDemo != nil {
		q = q.Where("is_demo = ?", *f.IsDemo)
	}
	if f.Result != "" {
		q = q.Where("result = ?", f.Result)
	}
	if f.InstrumentID != nil {
		q = q.Where("instrument_id = ?", *f.InstrumentID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count trades: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var trades []models.Trade
	if err := q.Order("settled_at DESC").Offset(f.Offset).Limit(limit).Find(&trades).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, total, nil
}

func (r *tradeRepository) ListAllActive(ctx context.Context) ([]DueTrade, error) {
	var due []DueTrade
	err := r.db.WithContext(ctx).Model(&models.Trade{}).
		Select("id, expires_at").
		Where("status = ?", models.TradeStatusActive).
		Scan(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active trades: %w", err)
	}
	return due, nil
}
