package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap/pkg/metrics"
	"skillswap/pkg/trace"
)

// Message is one delivered job.
type Message struct {
	ID    string
	Topic string
	Body  json.RawMessage
}

// HandlerFunc processes one message. A nil error acknowledges it; see
// OutcomeOf for how errors map to redelivery.
type HandlerFunc func(ctx context.Context, msg Message) error

// Enqueuer publishes a JSON job payload on a topic.
type Enqueuer interface {
	Publish(ctx context.Context, topic string, payload any) error
}

type messageIDKey struct{}

// WithMessageID pins the broker message id used by Publish on ctx. A job
// published twice under the same id is one message to the consumers.
func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey{}, id)
}

// MessageIDFrom returns the pinned message id, or a fresh uuid.
func MessageIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(messageIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Runner hosts one consumer per registered topic.
type Runner interface {
	Register(topic string, h HandlerFunc) error
	Start(ctx context.Context) error
	Stop()
}

// Outcome is the acknowledgement decision for a processed message.
type Outcome int

const (
	Ack Outcome = iota
	Requeue
	Reject
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type poisonError struct {
	err error
}

func (e *poisonError) Error() string { return "poison message: " + e.err.Error() }
func (e *poisonError) Unwrap() error { return e.err }

// Poison marks err as permanent: the message is dead-lettered, not retried.
func Poison(err error) error {
	if err == nil {
		return nil
	}
	return &poisonError{err: err}
}

func IsPoison(err error) bool {
	var p *poisonError
	return errors.As(err, &p)
}

// OutcomeOf maps a handler result to an acknowledgement decision.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Ack
	case IsPoison(err):
		return Reject
	default:
		return Requeue
	}
}

// RetryBudget counts redeliveries per message; util.RetryCounter implements it.
type RetryBudget interface {
	Attempt(ctx context.Context, key string) (int64, error)
	Clear(ctx context.Context, key string) error
}

// Processor runs a handler for one topic with panic recovery, metrics and
// an optional retry budget.
type Processor struct {
	topic      string
	handler    HandlerFunc
	budget     RetryBudget
	maxRetries int64
	logger     *zap.Logger
}

func NewProcessor(topic string, handler HandlerFunc, logger *zap.Logger) *Processor {
	return &Processor{topic: topic, handler: handler, logger: logger}
}

// WithRetryBudget dead-letters a message after maxRetries requeues.
func (p *Processor) WithRetryBudget(budget RetryBudget, maxRetries int64) *Processor {
	p.budget = budget
	p.maxRetries = maxRetries
	return p
}

// Process runs the handler and returns the acknowledgement decision.
func (p *Processor) Process(ctx context.Context, msg Message) (outcome Outcome) {
	start := time.Now()
	ctx = withPayloadTrace(ctx, msg.Body)
	log := p.logger.With(
		zap.String("topic", p.topic),
		zap.String("message_id", msg.ID),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			outcome = p.afterFailure(ctx, msg, log)
		}
		metrics.RecordMQConsume(p.topic, outcome.String(), time.Since(start))
	}()

	err := p.handler(ctx, msg)
	outcome = OutcomeOf(err)
	switch outcome {
	case Ack:
		p.resetBudget(ctx, msg)
		log.Debug("Message processed successfully")
	case Reject:
		log.Error("Poison message rejected", zap.Error(err))
		p.resetBudget(ctx, msg)
	case Requeue:
		log.Error("Handler error", zap.Error(err))
		outcome = p.afterFailure(ctx, msg, log)
	}
	return outcome
}

func (p *Processor) afterFailure(ctx context.Context, msg Message, log *zap.Logger) Outcome {
	if p.budget == nil || p.maxRetries <= 0 || msg.ID == "" {
		return Requeue
	}
	count, err := p.budget.Attempt(ctx, p.retryKey(msg))
	if err != nil {
		// budget store down: keep retrying rather than drop
		log.Warn("Retry budget unavailable", zap.Error(err))
		return Requeue
	}
	if count > p.maxRetries {
		log.Error("Retry budget exhausted, dead-lettering",
			zap.Int64("attempts", count),
		)
		p.resetBudget(ctx, msg)
		return Reject
	}
	return Requeue
}

func (p *Processor) resetBudget(ctx context.Context, msg Message) {
	if p.budget == nil || msg.ID == "" {
		return
	}
	if err := p.budget.Clear(ctx, p.retryKey(msg)); err != nil {
		p.logger.Debug("Failed to reset retry budget", zap.Error(err))
	}
}

func (p *Processor) retryKey(msg Message) string {
	return fmt.Sprintf("retry:%s:%s", p.topic, msg.ID)
}

func withPayloadTrace(ctx context.Context, body json.RawMessage) context.Context {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.TraceID == "" {
		return ctx
	}
	return trace.WithContext(ctx, envelope.TraceID)
}
