package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"job-match-go/internal/config"
	"job-match-go/internal/logger"
	"job-match-go/internal/tracing"
)

var rabbitTracer = otel.Tracer("job-match-go/storage/rabbitmq")

// MessageQueue is the broker surface used by the match-event publisher and
// the background matching consumer.
type MessageQueue interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error
	EnsureExchange(exchangeName, exchangeType string, durable bool) error
	EnsureQueue(queueName string, durable bool) error
	BindQueue(queueName, exchangeName, routingKey string) error
	Close() error
}

var _ MessageQueue = (*RabbitMQ)(nil)

// RabbitMQ provides the message queue over a pooled channel set.
type RabbitMQ struct {
	conn         *amqp.Connection
	channelPool  sync.Pool
	exchangeMap  map[string]bool
	queueMap     map[string]bool
	bindingMap   map[string]bool // key format: "exchange:queue:routingKey"
	publishMutex sync.Mutex
	cfg          *config.RabbitMQConfig
}

// NewRabbitMQ connects to the broker and prepares the channel pool.
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rabbitmq config cannot be nil")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("rabbitmq URL is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ (%s): %w", cfg.URL, err)
	}

	mq := &RabbitMQ{
		conn:        conn,
		exchangeMap: make(map[string]bool),
		queueMap:    make(map[string]bool),
		bindingMap:  make(map[string]bool),
		cfg:         cfg,
	}

	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, poolErr := conn.Channel()
			if poolErr != nil {
				logger.Logger.Error().Err(poolErr).Msg("Failed to create RabbitMQ channel")
				return nil
			}
			return ch
		},
	}

	testCh := mq.getChannel()
	if testCh == nil {
		conn.Close()
		return nil, fmt.Errorf("cannot create RabbitMQ channel")
	}
	mq.putChannel(testCh)

	logger.Logger.Info().Str("url", cfg.URL).Msg("Connected to RabbitMQ")
	return mq, nil
}

func (r *RabbitMQ) getChannel() *amqp.Channel {
	ch := r.channelPool.Get()
	if ch == nil {
		newCh, err := r.conn.Channel()
		if err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to create new RabbitMQ channel")
			return nil
		}
		return newCh
	}
	return ch.(*amqp.Channel)
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil {
		r.channelPool.Put(ch)
	}
}

// Close closes the broker connection.
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// EnsureExchange declares the exchange once per process.
func (r *RabbitMQ) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	if exchangeName == "" {
		return fmt.Errorf("exchange name cannot be empty")
	}
	if exchangeName == "amq.default" || exchangeName == "default" {
		return fmt.Errorf("cannot declare default exchange '%s'", exchangeName)
	}

	if _, exists := r.exchangeMap[exchangeName]; exists {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("cannot get RabbitMQ channel")
	}
	defer r.putChannel(ch)

	err := ch.ExchangeDeclare(
		exchangeName,
		exchangeType,
		durable,
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	r.exchangeMap[exchangeName] = true
	logger.Logger.Debug().Str("exchange", exchangeName).Str("type", exchangeType).Msg("Exchange ensured")
	return nil
}

// EnsureQueue declares the queue once per process. For queues already in the
// local cache a passive declare re-verifies they still exist server-side.
func (r *RabbitMQ) EnsureQueue(queueName string, durable bool) error {
	if _, exists := r.queueMap[queueName]; exists {
		ch := r.getChannel()
		if ch == nil {
			return fmt.Errorf("cannot get RabbitMQ channel")
		}
		defer r.putChannel(ch)

		_, err := ch.QueueDeclarePassive(
			queueName,
			durable,
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			delete(r.queueMap, queueName)
			return fmt.Errorf("passive declare queue '%s' (gone or mismatched): %w", queueName, err)
		}
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("cannot get RabbitMQ channel")
	}
	defer r.putChannel(ch)

	_, err := ch.QueueDeclare(
		queueName,
		durable,
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	r.queueMap[queueName] = true
	logger.Logger.Debug().Str("queue", queueName).Msg("Queue ensured")
	return nil
}

// BindQueue binds the queue to the exchange once per process.
func (r *RabbitMQ) BindQueue(queueName, exchangeName, routingKey string) error {
	bindingKey := fmt.Sprintf("%s:%s:%s", exchangeName, queueName, routingKey)
	if _, exists := r.bindingMap[bindingKey]; exists {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("cannot get RabbitMQ channel")
	}
	defer r.putChannel(ch)

	err := ch.QueueBind(
		queueName,
		routingKey,
		exchangeName,
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue to exchange: %w", err)
	}

	r.bindingMap[bindingKey] = true
	logger.Logger.Debug().
		Str("queue", queueName).
		Str("exchange", exchangeName).
		Str("routing_key", routingKey).
		Msg("Queue bound")
	return nil
}

// PublishMessage publishes raw bytes to the exchange.
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("cannot get RabbitMQ channel")
	}
	defer r.putChannel(ch)

	var deliveryMode uint8 = 1
	if persistent {
		deliveryMode = 2
	}

	return ch.PublishWithContext(
		ctx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: deliveryMode,
			ContentType:  "application/json",
			Body:         message,
			Timestamp:    time.Now(),
		},
	)
}

// PublishJSON marshals data and publishes it.
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return r.PublishMessage(ctx, exchangeName, routingKey, jsonData, persistent)
}

// StartConsumer consumes queueName on a dedicated channel. The handler
// returns true to ack; false nacks with requeue. Close the returned channel
// to stop the consumer.
func (r *RabbitMQ) StartConsumer(queueName string, prefetchCount int, handler func([]byte) bool) (chan struct{}, error) {
	stopCh := make(chan struct{})

	ch := r.getChannel()
	if ch == nil {
		return nil, fmt.Errorf("cannot get RabbitMQ channel")
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		r.putChannel(ch)
		return nil, fmt.Errorf("set QoS: %w", err)
	}

	deliveries, err := ch.Consume(
		queueName,
		"",    // consumer tag, server-generated
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		r.putChannel(ch)
		return nil, fmt.Errorf("register consumer: %w", err)
	}

	go func() {
		defer r.putChannel(ch)
		defer logger.Logger.Info().Str("queue", queueName).Msg("RabbitMQ consumer stopped")

		logger.Logger.Info().
			Str("queue", queueName).
			Int("prefetch", prefetchCount).
			Msg("RabbitMQ consumer started")

		for {
			select {
			case <-stopCh:
				return
			case delivery, ok := <-deliveries:
				if !ok {
					logger.Logger.Warn().Msg("RabbitMQ channel closed")
					return
				}

				if handler(delivery.Body) {
					if err := delivery.Ack(false); err != nil {
						logger.Logger.Error().Err(err).Msg("Failed to ack message")
					}
				} else {
					_, span := rabbitTracer.Start(context.Background(), "RabbitMQ.Nack")
					tracing.RecordRabbitMQNack(span, delivery.MessageId, "handler rejected message, requeued")
					span.End()
					if err := delivery.Nack(false, true); err != nil {
						logger.Logger.Error().Err(err).Msg("Failed to nack message")
					}
				}
			}
		}
	}()

	return stopCh, nil
}
