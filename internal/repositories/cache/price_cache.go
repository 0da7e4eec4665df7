package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stakeoption/internal/models"

	"github.com/redis/go-redis/v9"
)

// PriceCache stores the latest quote per symbol under price:<symbol> and
// announces each new quote on PriceUpdatesChannel.
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPriceCache(client *redis.Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &PriceCache{client: client, ttl: ttl}
}

func priceKey(symbol string) string {
	return "price:" + symbol
}

// PublishTick writes the cache entry and the announcement in one round trip.
func (c *PriceCache) PublishTick(ctx context.Context, tick models.PriceTick) error {
	data, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to marshal tick: %w", err)
	}
	pipe := c.client.Pipeline()
	pipe.Set(ctx, priceKey(tick.Symbol), data, c.ttl)
	pipe.Publish(ctx, PriceUpdatesChannel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish tick for %s: %w", tick.Symbol, err)
	}
	return nil
}

// GetTick returns nil when the entry expired or was never written.
func (c *PriceCache) GetTick(ctx context.Context, symbol string) (*models.PriceTick, error) {
	data, err := c.client.Get(ctx, priceKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read price for %s: %w", symbol, err)
	}
	var tick models.PriceTick
	if err := json.Unmarshal(data, &tick); err != nil {
		return nil, fmt.Errorf("failed to decode price for %s: %w", symbol, err)
	}
	return &tick, nil
}

// GetTicks reads many symbols with one pipelined round trip. Missing symbols
// are absent from the result.
func (c *PriceCache) GetTicks(ctx context.Context, symbols []string) (map[string]models.PriceTick, error) {
	out := make(map[string]models.PriceTick, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	pipe := c.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(symbols))
	for i, s := range symbols {
		cmds[i] = pipe.Get(ctx, priceKey(s))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read prices: %w", err)
	}
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var tick models.PriceTick
		if json.Unmarshal(data, &tick) == nil {
			out[symbols[i]] = tick
		}
	}
	return out, nil
}
