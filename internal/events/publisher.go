package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stakeoption/internal/logger"
	"stakeoption/internal/repositories/cache"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher sends an event to every connection of one user.
type Publisher interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, event string, data interface{}) error
}

func encodeUserEvent(userID uuid.UUID, event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(userEvent{Event: event, UserID: userID.String(), Data: raw})
}

// RedisPublisher publishes on the user events channel picked up by every
// Relay.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishToUser(ctx context.Context, userID uuid.UUID, event string, data interface{}) error {
	payload, err := encodeUserEvent(userID, event, data)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, cache.UserEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event, err)
	}
	return nil
}

// ErrKafkaBacklog is returned when the outbound queue is full. The event is
// dropped; the Redis path is unaffected.
var ErrKafkaBacklog = errors.New("kafka publish queue is full")

const (
	kafkaQueueSize    = 1024
	kafkaBatchSize    = 100
	kafkaWriteTimeout = 5 * time.Second
)

// KafkaPublisher streams user events to a topic keyed by user, so
// downstream consumers see each user's events in order. PublishToUser only
// enqueues; Run owns the writer so a slow or absent broker never holds up
// settlement or payment callbacks.
type KafkaPublisher struct {
	writer *kafka.Writer
	queue  chan kafka.Message
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			BatchSize:    kafkaBatchSize,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: kafkaWriteTimeout,
		},
		queue: make(chan kafka.Message, kafkaQueueSize),
		log:   logger.OrNop(log).Named("kafka"),
	}
}

func (p *KafkaPublisher) PublishToUser(_ context.Context, userID uuid.UUID, event string, data interface{}) error {
	payload, err := encodeUserEvent(userID, event, data)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:     []byte(userID.String()),
		Value:   payload,
		Headers: []kafka.Header{{Key: "event", Value: []byte(event)}},
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		return fmt.Errorf("failed to queue %s: %w", event, ErrKafkaBacklog)
	}
}

// Run drains the queue in batches until ctx is done, then flushes what is
// left with a bounded deadline.
func (p *KafkaPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), kafkaWriteTimeout)
			p.write(flushCtx, p.drain(nil, len(p.queue)))
			cancel()
			return ctx.Err()
		case msg := <-p.queue:
			batch := p.drain([]kafka.Message{msg}, kafkaBatchSize-1)
			writeCtx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
			p.write(writeCtx, batch)
			cancel()
		}
	}
}

// drain appends up to n already queued messages without blocking.
func (p *KafkaPublisher) drain(batch []kafka.Message, n int) []kafka.Message {
	for i := 0; i < n; i++ {
		select {
		case msg := <-p.queue:
			batch = append(batch, msg)
		default:
			return batch
		}
	}
	return batch
}

func (p *KafkaPublisher) write(ctx context.Context, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}
	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		p.log.Warn("failed to write user events", zap.Int("messages", len(batch)), zap.Error(err))
	}
}

// Pending reports how many events are waiting for the writer.
func (p *KafkaPublisher) Pending() int {
	return len(p.queue)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Fanout publishes to every publisher and joins the errors.
type Fanout []Publisher

func (f Fanout) PublishToUser(ctx context.Context, userID uuid.UUID, event string, data interface{}) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishToUser(ctx, userID, event, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
