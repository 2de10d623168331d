package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AsynqPublisher enqueues jobs as asynq tasks whose type is the topic.
type AsynqPublisher struct {
	client     *asynq.Client
	maxRetries int
}

func NewAsynqPublisher(opt asynq.RedisClientOpt, maxRetries int) *AsynqPublisher {
	return &AsynqPublisher{client: asynq.NewClient(opt), maxRetries: maxRetries}
}

func (p *AsynqPublisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	task := asynq.NewTask(topic, body)
	_, err = p.client.EnqueueContext(ctx, task,
		asynq.TaskID(MessageIDFrom(ctx)),
		asynq.MaxRetry(p.maxRetries),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// already queued under this id
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", topic, err)
	}
	return nil
}

func (p *AsynqPublisher) Close() error {
	return p.client.Close()
}

// AsynqRunner serves registered topics from asynq. Asynq owns the retry
// budget and archives tasks that exhaust it.
type AsynqRunner struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

func NewAsynqRunner(opt asynq.RedisClientOpt, concurrency int, logger *zap.Logger) *AsynqRunner {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"default": 1},
	})
	return &AsynqRunner{server: srv, mux: asynq.NewServeMux(), logger: logger}
}

func (r *AsynqRunner) Register(topic string, h HandlerFunc) error {
	p := NewProcessor(topic, h, r.logger)
	r.mux.HandleFunc(topic, func(ctx context.Context, t *asynq.Task) error {
		id, _ := asynq.GetTaskID(ctx)
		return asynqResult(p.Process(ctx, Message{ID: id, Topic: topic, Body: t.Payload()}))
	})
	return nil
}

func asynqResult(o Outcome) error {
	switch o {
	case Ack:
		return nil
	case Reject:
		return fmt.Errorf("rejected: %w", asynq.SkipRetry)
	default:
		return fmt.Errorf("requeue")
	}
}

func (r *AsynqRunner) Start(ctx context.Context) error {
	if err := r.server.Start(r.mux); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (r *AsynqRunner) Stop() {
	r.server.Shutdown()
}
