package mq

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer consumes one topic from its own durable queue.
type Consumer struct {
	channel   *amqp091.Channel
	queue     amqp091.Queue
	topic     string
	tag       string
	prefetch  int
	processor *Processor
	conn      *amqp091.Connection
	logger    *zap.Logger
}

// NewConsumer creates a consumer whose queue is named after topic and
// dead-letters into the topic's DLQ. prefetch bounds unacked deliveries.
func NewConsumer(url, topic string, prefetch int, processor *Processor, logger *zap.Logger) (*Consumer, error) {
	if prefetch <= 0 {
		prefetch = 1
	}
	conn, ch, err := dial(url)
	if err != nil {
		return nil, err
	}

	c := &Consumer{
		conn:      conn,
		channel:   ch,
		topic:     topic,
		tag:       "worker-" + topic,
		prefetch:  prefetch,
		processor: processor,
		logger:    logger,
	}
	if err := c.declare(); err != nil {
		c.Close()
		return nil, err
	}

	logger.Info("Consumer initialized",
		zap.String("topic", topic),
		zap.String("queue", c.queue.Name),
		zap.String("exchange", ExchangeName),
	)
	return c, nil
}

func (c *Consumer) declare() error {
	q, err := declareTopic(c.channel, c.topic)
	if err != nil {
		return err
	}
	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}
	c.queue = q
	return nil
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Stop cancels delivery; StartConsuming returns once in-flight work is done.
func (c *Consumer) Stop() {
	if c.channel == nil {
		return
	}
	if err := c.channel.Cancel(c.tag, false); err != nil {
		c.logger.Warn("Failed to cancel consumer", zap.String("topic", c.topic), zap.Error(err))
	}
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.tag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("topic", c.topic),
		zap.String("queue", c.queue.Name),
	)

	return c.consume(ctx, deliveries)
}

// consume settles deliveries until ctx is done. A closed delivery channel
// while ctx is still live means the broker went away and is an error.
func (c *Consumer) consume(ctx context.Context, deliveries <-chan amqp091.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("deliveries closed for %s", c.topic)
			}
			c.handleDelivery(ctx, d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp091.Delivery) {
	msg := Message{ID: d.MessageId, Topic: c.topic, Body: d.Body}
	outcome := c.processor.Process(ctx, msg)

	var err error
	switch outcome {
	case Ack:
		err = d.Ack(false)
	case Requeue:
		err = d.Nack(false, true)
	case Reject:
		err = d.Reject(false)
	}
	if err != nil {
		c.logger.Error("Failed to settle message",
			zap.String("topic", c.topic),
			zap.String("outcome", outcome.String()),
			zap.Error(err),
		)
	}
}

// RabbitRunner hosts one Consumer per topic.
type RabbitRunner struct {
	url        string
	budget     RetryBudget
	maxRetries int64
	prefetch   int
	logger     *zap.Logger
	consumers  []*Consumer
}

func NewRabbitRunner(url string, budget RetryBudget, maxRetries int64, logger *zap.Logger) *RabbitRunner {
	return &RabbitRunner{url: url, budget: budget, maxRetries: maxRetries, logger: logger}
}

// WithPrefetch sets the per-consumer prefetch count.
func (r *RabbitRunner) WithPrefetch(n int) *RabbitRunner {
	r.prefetch = n
	return r
}

func (r *RabbitRunner) Register(topic string, h HandlerFunc) error {
	p := NewProcessor(topic, h, r.logger)
	if r.budget != nil {
		p.WithRetryBudget(r.budget, r.maxRetries)
	}
	c, err := NewConsumer(r.url, topic, r.prefetch, p, r.logger)
	if err != nil {
		return fmt.Errorf("consumer %s: %w", topic, err)
	}
	r.consumers = append(r.consumers, c)
	return nil
}

// Start runs every consumer and blocks until ctx is done or one fails.
func (r *RabbitRunner) Start(ctx context.Context) error {
	errCh := make(chan error, len(r.consumers))
	for _, c := range r.consumers {
		go func(c *Consumer) {
			errCh <- c.StartConsuming(ctx)
		}(c)
	}
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (r *RabbitRunner) Stop() {
	for _, c := range r.consumers {
		c.Stop()
		c.Close()
	}
}
