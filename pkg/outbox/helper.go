package outbox

import (
	"context"
	"encoding/json"

	"skillswap/pkg/db"
)

// Writer enqueues jobs into the outbox through a bound transaction.
type Writer struct {
	repo *Repository
	tx   db.DBTX
}

// NewWriter binds repo to tx for the lifetime of one transaction.
func NewWriter(repo *Repository, tx db.DBTX) *Writer {
	return &Writer{repo: repo, tx: tx}
}

// Enqueue marshals payload and inserts it as a pending event for topic.
func (w *Writer) Enqueue(ctx context.Context, aggregateType string, aggregateID *int64, topic string, payload any) error {
	return InsertEventInTx(ctx, w.tx, w.repo, aggregateType, aggregateID, topic, payload)
}

// InsertEventInTx inserts a pending event using q.
func InsertEventInTx(
	ctx context.Context,
	q db.DBTX,
	repo *Repository,
	aggregateType string,
	aggregateID *int64,
	routingKey string,
	payload any,
) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	}

	return repo.InsertEvent(ctx, q, event)
}
