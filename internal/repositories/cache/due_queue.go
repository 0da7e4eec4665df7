package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveTradesKey is the sorted set of trade IDs scored by expiry in epoch ms.
const ActiveTradesKey = "trades:active"

type DueQueue struct {
	client *redis.Client
	key    string
}

func NewDueQueue(client *redis.Client) *DueQueue {
	return &DueQueue{client: client, key: ActiveTradesKey}
}

// Schedule sets or moves the due time of id.
func (q *DueQueue) Schedule(ctx context.Context, id string, due time.Time) error {
	err := q.client.ZAdd(ctx, q.key, redis.Z{Score: float64(due.UnixMilli()), Member: id}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", id, err)
	}
	return nil
}

// ScheduleIfAbsent leaves an existing entry untouched.
func (q *DueQueue) ScheduleIfAbsent(ctx context.Context, id string, due time.Time) (bool, error) {
	n, err := q.client.ZAddNX(ctx, q.key, redis.Z{Score: float64(due.UnixMilli()), Member: id}).Result()
	if err != nil {
		return false, fmt.Errorf("failed to schedule %s: %w", id, err)
	}
	return n == 1, nil
}

// Due lists up to limit ids whose due time is at or before now.
func (q *DueQueue) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due trades: %w", err)
	}
	return ids, nil
}

// Claim removes id and reports whether this caller was the one to remove it.
func (q *DueQueue) Claim(ctx context.Context, id string) (bool, error) {
	n, err := q.client.ZRem(ctx, q.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", id, err)
	}
	return n == 1, nil
}

func (q *DueQueue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}
