package events

import (
	"context"
	"encoding/json"

	"stakeoption/internal/logger"
	"stakeoption/internal/repositories/cache"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Relay subscribes to the Redis channels and routes every message to the
// local connections that want it.
type Relay struct {
	client   *redis.Client
	registry *Registry
	log      *zap.Logger
	metrics  MetricsCollector
}

func NewRelay(client *redis.Client, registry *Registry, log *zap.Logger, metrics MetricsCollector) *Relay {
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	return &Relay{
		client:   client,
		registry: registry,
		log:      logger.OrNop(log).Named("relay"),
		metrics:  metrics,
	}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, cache.PriceUpdatesChannel, cache.UserEventsChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.log.Info("relay subscribed", zap.Strings("channels", []string{cache.PriceUpdatesChannel, cache.UserEventsChannel}))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.Route(msg.Channel, []byte(msg.Payload))
		}
	}
}

// Route delivers one pub/sub payload.
func (r *Relay) Route(channel string, payload []byte) {
	switch channel {
	case cache.PriceUpdatesChannel:
		var tick symbolData
		if err := json.Unmarshal(payload, &tick); err != nil || tick.Symbol == "" {
			r.log.Warn("dropping malformed price update", zap.Error(err))
			return
		}
		frame, err := Encode(EventPriceUpdate, json.RawMessage(payload))
		if err != nil {
			return
		}
		if dropped := r.registry.BroadcastSymbol(tick.Symbol, frame); dropped > 0 {
			r.metrics.RecordDropped(dropped)
		}
	case cache.UserEventsChannel:
		var ev userEvent
		if err := json.Unmarshal(payload, &ev); err != nil || ev.Event == "" {
			r.log.Warn("dropping malformed user event", zap.Error(err))
			return
		}
		userID, err := uuid.Parse(ev.UserID)
		if err != nil {
			r.log.Warn("dropping user event without user", zap.String("event", ev.Event))
			return
		}
		frame, err := Encode(ev.Event, ev.Data)
		if err != nil {
			return
		}
		if dropped := r.registry.SendToUser(userID, frame); dropped > 0 {
			r.metrics.RecordDropped(dropped)
		}
	}
}
