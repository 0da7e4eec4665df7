package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Nothing listens on port 1, so any write to this broker would fail.
var unreachableBroker = []string{"127.0.0.1:1"}

func TestKafkaPublishDoesNotWaitForBroker(t *testing.T) {
	p := NewKafkaPublisher(unreachableBroker, "stakeoption.user-events", nil)
	t.Cleanup(func() { _ = p.Close() })
	user := uuid.New()

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, p.PublishToUser(context.Background(), user, "trade:settled", map[string]int{"n": i}))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 10, p.Pending())

	msg := <-p.queue
	assert.Equal(t, user.String(), string(msg.Key))
	assert.Equal(t, "trade:settled", string(msg.Headers[0].Value))
	var ev userEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.JSONEq(t, `{"n":0}`, string(ev.Data))
}

func TestKafkaPublishDropsWhenBacklogged(t *testing.T) {
	p := NewKafkaPublisher(unreachableBroker, "stakeoption.user-events", nil)
	t.Cleanup(func() { _ = p.Close() })
	user := uuid.New()

	for i := 0; i < kafkaQueueSize; i++ {
		require.NoError(t, p.PublishToUser(context.Background(), user, "deposit:confirmed", nil))
	}
	err := p.PublishToUser(context.Background(), user, "deposit:confirmed", nil)
	assert.ErrorIs(t, err, ErrKafkaBacklog)
	assert.Equal(t, kafkaQueueSize, p.Pending())
}

func TestKafkaDrainStopsAtEmptyQueue(t *testing.T) {
	p := NewKafkaPublisher(unreachableBroker, "stakeoption.user-events", nil)
	t.Cleanup(func() { _ = p.Close() })
	for i := 0; i < 3; i++ {
		require.NoError(t, p.PublishToUser(context.Background(), uuid.New(), "trade:settled", nil))
	}

	batch := p.drain(nil, kafkaBatchSize)
	assert.Len(t, batch, 3)
	assert.Zero(t, p.Pending())
}

func TestKafkaRunReturnsOnCancel(t *testing.T) {
	p := NewKafkaPublisher(unreachableBroker, "stakeoption.user-events", nil)
	t.Cleanup(func() { _ = p.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)
}

type recordingPublisher struct {
	events []string
}

func (r *recordingPublisher) PublishToUser(_ context.Context, _ uuid.UUID, event string, _ interface{}) error {
	r.events = append(r.events, event)
	return nil
}

func TestFanoutDeliversDespiteKafkaBacklog(t *testing.T) {
	kafka := NewKafkaPublisher(unreachableBroker, "stakeoption.user-events", nil)
	t.Cleanup(func() { _ = kafka.Close() })
	for i := 0; i < kafkaQueueSize; i++ {
		require.NoError(t, kafka.PublishToUser(context.Background(), uuid.New(), "trade:settled", nil))
	}
	redis := &recordingPublisher{}

	err := Fanout{redis, kafka}.PublishToUser(context.Background(), uuid.New(), "trade:settled", nil)
	assert.ErrorIs(t, err, ErrKafkaBacklog)
	assert.Equal(t, []string{"trade:settled"}, redis.events)
}
