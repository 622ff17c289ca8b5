package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"job-match-go/internal/config"
	"job-match-go/internal/domain"
	"job-match-go/internal/logger"
	"job-match-go/internal/storage"
)

// MatchNeededEvent asks the background worker to run matching for a résumé.
type MatchNeededEvent struct {
	ResumeID    string    `json:"resume_id"`
	Limit       int       `json:"limit,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// EventPublisher publishes match events to the broker.
type EventPublisher struct {
	mq  storage.MessageQueue
	cfg *config.RabbitMQConfig
}

// NewEventPublisher declares the exchange and returns the publisher.
func NewEventPublisher(mq storage.MessageQueue, cfg *config.RabbitMQConfig) (*EventPublisher, error) {
	if mq == nil {
		return nil, fmt.Errorf("message queue cannot be nil")
	}
	if err := mq.EnsureExchange(cfg.MatchEventsExchange, "topic", true); err != nil {
		return nil, fmt.Errorf("ensure match events exchange: %w", err)
	}
	return &EventPublisher{mq: mq, cfg: cfg}, nil
}

// PublishMatchNeeded enqueues an asynchronous match run. Transient broker
// failures are retried up to the configured budget with a fixed interval
// between attempts.
func (p *EventPublisher) PublishMatchNeeded(ctx context.Context, resumeID string, limit int) error {
	event := MatchNeededEvent{
		ResumeID:    resumeID,
		Limit:       limit,
		RequestedAt: time.Now(),
	}

	attempts := p.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	interval := config.GetDuration(p.cfg.RetryInterval, 5*time.Second)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = p.mq.PublishJSON(ctx, p.cfg.MatchEventsExchange, p.cfg.MatchNeededRoutingKey, event, true)
		if err == nil {
			logger.Ctx(ctx).Info().
				Str("resume_id", resumeID).
				Int("limit", limit).
				Int("attempt", attempt).
				Msg("Published match.needed event")
			return nil
		}
		if attempt == attempts {
			break
		}
		logger.Ctx(ctx).Warn().
			Err(err).
			Str("resume_id", resumeID).
			Int("attempt", attempt).
			Msg("Publish match.needed failed, retrying")
		select {
		case <-ctx.Done():
			return fmt.Errorf("publish match.needed for resume %s: %w", resumeID, ctx.Err())
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("publish match.needed for resume %s after %d attempts: %w", resumeID, attempts, err)
}

// Consumer runs match pipelines for queued match.needed events.
type Consumer struct {
	mq           *storage.RabbitMQ
	orchestrator *Orchestrator
	cfg          *config.RabbitMQConfig
	stopCh       chan struct{}
}

// NewConsumer declares the queue topology and returns the consumer.
func NewConsumer(mq *storage.RabbitMQ, orchestrator *Orchestrator, cfg *config.RabbitMQConfig) (*Consumer, error) {
	if mq == nil {
		return nil, fmt.Errorf("message queue cannot be nil")
	}
	if err := mq.EnsureExchange(cfg.MatchEventsExchange, "topic", true); err != nil {
		return nil, fmt.Errorf("ensure match events exchange: %w", err)
	}
	if err := mq.EnsureQueue(cfg.JobMatchingQueue, true); err != nil {
		return nil, fmt.Errorf("ensure job matching queue: %w", err)
	}
	if err := mq.BindQueue(cfg.JobMatchingQueue, cfg.MatchEventsExchange, cfg.MatchNeededRoutingKey); err != nil {
		return nil, fmt.Errorf("bind job matching queue: %w", err)
	}
	return &Consumer{
		mq:           mq,
		orchestrator: orchestrator,
		cfg:          cfg,
	}, nil
}

// Start begins consuming. Messages that fail for transient reasons are
// nacked and requeued; malformed or permanently unprocessable messages are
// acked and dropped.
func (c *Consumer) Start() error {
	prefetch := c.cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = 10
	}

	stopCh, err := c.mq.StartConsumer(c.cfg.JobMatchingQueue, prefetch, c.handle)
	if err != nil {
		return fmt.Errorf("start match consumer: %w", err)
	}
	c.stopCh = stopCh
	return nil
}

// Stop stops the consumer.
func (c *Consumer) Stop() {
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
}

// handle processes one event. The returned bool is the ack decision.
func (c *Consumer) handle(body []byte) bool {
	var event MatchNeededEvent
	if err := json.Unmarshal(body, &event); err != nil {
		logger.Logger.Error().Err(err).Msg("Dropping malformed match.needed event")
		return true
	}
	if event.ResumeID == "" {
		logger.Logger.Error().Msg("Dropping match.needed event without resume ID")
		return true
	}

	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background()), 2*time.Minute)
	defer cancel()

	matches, stats, err := c.orchestrator.FindMatches(ctx, event.ResumeID, event.Limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, storage.ErrNotFound) {
			logger.Logger.Warn().
				Err(err).
				Str("resume_id", event.ResumeID).
				Msg("Dropping unprocessable match.needed event")
			return true
		}
		logger.Logger.Error().
			Err(err).
			Str("resume_id", event.ResumeID).
			Msg("Match run failed, requeueing event")
		return false
	}

	logger.Logger.Info().
		Str("resume_id", event.ResumeID).
		Int("matches", len(matches)).
		Dur("elapsed", stats.ProcessingTime).
		Msg("Background match run finished")
	return true
}
