package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"skillswap/pkg/mq"
	"skillswap/pkg/trace"
)

// ReplayService republishes events by hand, typically after a DLQ review.
type ReplayService struct {
	store     Store
	publisher mq.Enqueuer
}

func NewReplayService(store Store, publisher mq.Enqueuer) *ReplayService {
	return &ReplayService{store: store, publisher: publisher}
}

func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	event, err := s.store.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}

	ctx = mq.WithMessageID(withPayloadTrace(ctx, event.Payload), MessageID(event.ID))
	if err := s.publisher.Publish(ctx, event.RoutingKey, event.Payload); err != nil {
		// the dispatcher keeps trying once the broker is back
		if resetErr := s.store.ResetEvent(ctx, eventID); resetErr != nil {
			return fmt.Errorf("failed to publish and reset: %w (reset error: %v)", err, resetErr)
		}
		return fmt.Errorf("failed to publish, event handed back to dispatcher: %w", err)
	}

	if err := s.store.MarkAsSent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to mark as sent: %w", err)
	}
	return nil
}

// ReplayFailedEvents replays up to limit failed events and returns how many
// went through.
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.store.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	successCount := 0
	for _, event := range events {
		if err := s.ReplayEvent(ctx, event.ID); err != nil {
			continue
		}
		successCount++
	}
	return successCount, nil
}

func withPayloadTrace(ctx context.Context, payload json.RawMessage) context.Context {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.TraceID == "" {
		return ctx
	}
	return trace.WithContext(ctx, envelope.TraceID)
}
