package main

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// poolStats logs connection pool usage once a minute until ctx ends.
func poolStats(ctx context.Context, log *zap.Logger, db *sql.DB) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			log.Debug("db pool stats",
				zap.Int("open", stats.OpenConnections),
				zap.Int("idle", stats.Idle),
				zap.Int("in_use", stats.InUse),
				zap.Int64("wait_count", stats.WaitCount),
				zap.Duration("wait_duration", stats.WaitDuration),
			)
		}
	}
}
