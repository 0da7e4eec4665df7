package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDueQueueClaimsOnce(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := NewDueQueue(client)

	now := time.UnixMilli(1_750_000_000_000)
	require.NoError(t, q.Schedule(ctx, "t-early", now.Add(-time.Second)))
	require.NoError(t, q.Schedule(ctx, "t-now", now))
	require.NoError(t, q.Schedule(ctx, "t-later", now.Add(time.Minute)))

	added, err := q.ScheduleIfAbsent(ctx, "t-early", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, added)

	due, err := q.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"t-early", "t-now"}, due)

	due, err = q.Due(ctx, now, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"t-early"}, due)

	won, err := q.Claim(ctx, "t-early")
	require.NoError(t, err)
	assert.True(t, won)
	won, err = q.Claim(ctx, "t-early")
	require.NoError(t, err)
	assert.False(t, won)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
