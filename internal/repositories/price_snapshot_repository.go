package repositories

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stakeoption/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PriceSnapshotRepository keeps the sampled price history used for charts.
type PriceSnapshotRepository struct {
	db *gorm.DB
}

func NewPriceSnapshotRepository(db *gorm.DB) *PriceSnapshotRepository {
	return &PriceSnapshotRepository{db: db}
}

// SaveSnapshots ignores samples already stored for the same symbol and second.
func (r *PriceSnapshotRepository) SaveSnapshots(ctx context.Context, snapshots []models.PriceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&snapshots, 100).Error
	if err != nil {
		return fmt.Errorf("failed to save snapshots: %w", err)
	}
	return nil
}

// Since returns samples captured at or after since in ascending time order,
// keeping the newest limit rows.
func (r *PriceSnapshotRepository) Since(ctx context.Context, symbol string, since time.Time, limit int) ([]models.PriceSnapshot, error) {
	var out []models.PriceSnapshot
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND captured_at >= ?", symbol, since).
		Order("captured_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out, nil
}

// Prune deletes samples older than before.
func (r *PriceSnapshotRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("captured_at < ?", before).Delete(&models.PriceSnapshot{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", res.Error)
	}
	return res.RowsAffected, nil
}
