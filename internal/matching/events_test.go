package matching

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/config"
)

// flakyQueue fails the first failures publishes, then succeeds.
type flakyQueue struct {
	failures  int
	calls     int
	published []interface{}
}

func (q *flakyQueue) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	q.calls++
	if q.calls <= q.failures {
		return errors.New("broker unavailable")
	}
	q.published = append(q.published, data)
	return nil
}

func (q *flakyQueue) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	return q.PublishJSON(ctx, exchangeName, routingKey, json.RawMessage(message), persistent)
}

func (q *flakyQueue) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	return nil
}

func (q *flakyQueue) EnsureQueue(queueName string, durable bool) error { return nil }

func (q *flakyQueue) BindQueue(queueName, exchangeName, routingKey string) error { return nil }

func (q *flakyQueue) Close() error { return nil }

func testRabbitConfig(maxRetries int) *config.RabbitMQConfig {
	return &config.RabbitMQConfig{
		MatchEventsExchange:   "match.events.exchange",
		MatchNeededRoutingKey: "match.needed",
		JobMatchingQueue:      "q.job_matching",
		RetryInterval:         "1ms",
		MaxRetries:            maxRetries,
	}
}

func TestPublishMatchNeededFirstAttempt(t *testing.T) {
	q := &flakyQueue{}
	pub, err := NewEventPublisher(q, testRabbitConfig(3))
	require.NoError(t, err)

	require.NoError(t, pub.PublishMatchNeeded(context.Background(), "resume-1", 10))
	assert.Equal(t, 1, q.calls)

	require.Len(t, q.published, 1)
	event := q.published[0].(MatchNeededEvent)
	assert.Equal(t, "resume-1", event.ResumeID)
	assert.Equal(t, 10, event.Limit)
	assert.False(t, event.RequestedAt.IsZero())
}

func TestPublishMatchNeededRetriesTransientFailures(t *testing.T) {
	q := &flakyQueue{failures: 2}
	pub, err := NewEventPublisher(q, testRabbitConfig(3))
	require.NoError(t, err)

	require.NoError(t, pub.PublishMatchNeeded(context.Background(), "resume-1", 10))
	assert.Equal(t, 3, q.calls)
}

func TestPublishMatchNeededExhaustsRetryBudget(t *testing.T) {
	q := &flakyQueue{failures: 100}
	pub, err := NewEventPublisher(q, testRabbitConfig(2))
	require.NoError(t, err)

	err = pub.PublishMatchNeeded(context.Background(), "resume-1", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, q.calls)
}

func TestPublishMatchNeededStopsOnCancelledContext(t *testing.T) {
	q := &flakyQueue{failures: 100}
	pub, err := NewEventPublisher(q, testRabbitConfig(5))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = pub.PublishMatchNeeded(ctx, "resume-1", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, q.calls)
}
