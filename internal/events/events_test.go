package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

type fakeChannel struct {
	key      string
	msgs     []amqp.Publishing
	deadline bool
	err      error
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	_, c.deadline = ctx.Deadline()
	c.key = key
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestPublishAnomalyRoundTrip(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "scheduler_events", time.Second)
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, p.Publish(&domain.SchedulerEvent{
		Type:       domain.EventAnomaly,
		FactoryID:  7,
		OccurredAt: at,
		Data:       domain.AnomalyEventData{Efficiency: 0.2, Threshold: 0.5, Samples: 4, Reason: "效率过低"},
	}))

	require.Len(t, ch.msgs, 1)
	msg := ch.msgs[0]
	assert.Equal(t, "scheduler_events", ch.key)
	assert.True(t, ch.deadline)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, domain.EventAnomaly, msg.Type)
	assert.Equal(t, at, msg.Timestamp)
	_, err := uuid.Parse(msg.MessageId)
	assert.NoError(t, err)

	env, err := DecodeEnvelope(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, int64(7), env.FactoryID)

	data, err := env.Anomaly()
	require.NoError(t, err)
	assert.InDelta(t, 0.2, data.Efficiency, 1e-9)
	assert.Equal(t, int64(4), data.Samples)
}

func TestPublishError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := NewPublisher(ch, "q", time.Second)

	err := p.Publish(&domain.SchedulerEvent{Type: domain.EventAdaptation})
	assert.ErrorIs(t, err, ch.err)
}

func TestAnomalyRejectsOtherTypes(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"adaptation","factoryID":1,"data":{}}`))
	require.NoError(t, err)

	_, err = env.Anomaly()
	assert.ErrorIs(t, err, ErrUnexpectedEventType)
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeEnvelope([]byte(`{"factoryID":1}`))
	assert.Error(t, err)
}

func TestPublishFeedback(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "allocation_feedback", time.Second)

	require.NoError(t, p.PublishFeedback(&domain.AllocationFeedback{FactoryID: 1, WorkerID: 3, TaskType: "sewing", Efficiency: 0.8, Completed: true}))
	require.Len(t, ch.msgs, 1)

	fb, err := DecodeFeedback(ch.msgs[0].Body)
	require.NoError(t, err)
	assert.Equal(t, int64(3), fb.WorkerID)
	assert.True(t, fb.Completed)
}
