package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"skillswap/pkg/mq"
	"skillswap/pkg/trace"
)

type fakeStore struct {
	pending []*Event
	failed  []*Event
	byID    map[int64]*Event
	sent    []int64
	marked  map[int64]int
	reset   []int64
}

func newFakeStore(events ...*Event) *fakeStore {
	s := &fakeStore{byID: make(map[int64]*Event), marked: make(map[int64]int)}
	for _, e := range events {
		s.byID[e.ID] = e
		if e.Status == StatusFailed {
			s.failed = append(s.failed, e)
		} else {
			s.pending = append(s.pending, e)
		}
	}
	return s
}

func (s *fakeStore) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *fakeStore) GetFailedEvents(context.Context, int) ([]*Event, error) {
	return s.failed, nil
}

func (s *fakeStore) GetEventByID(_ context.Context, id int64) (*Event, error) {
	e, ok := s.byID[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (s *fakeStore) MarkAsSent(_ context.Context, id int64) error {
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkAsFailed(_ context.Context, id int64, _ int) error {
	s.marked[id]++
	return nil
}

func (s *fakeStore) ResetEvent(_ context.Context, id int64) error {
	s.reset = append(s.reset, id)
	return nil
}

type published struct {
	topic     string
	payload   any
	traceID   string
	messageID string
}

type fakeEnqueuer struct {
	calls []published
	fail  map[string]bool
}

func (f *fakeEnqueuer) Publish(ctx context.Context, topic string, payload any) error {
	if f.fail[topic] {
		return errors.New("broker unavailable")
	}
	f.calls = append(f.calls, published{
		topic:     topic,
		payload:   payload,
		traceID:   trace.FromContext(ctx),
		messageID: mq.MessageIDFrom(ctx),
	})
	return nil
}

func TestDispatcherPublishesAndMarks(t *testing.T) {
	store := newFakeStore(
		&Event{ID: 1, RoutingKey: "offer_queue", Payload: json.RawMessage(`{"offer_id":1,"trace_id":"t-1"}`)},
		&Event{ID: 2, RoutingKey: "project_worker", Payload: json.RawMessage(`{"offer_id":2}`)},
	)
	pub := &fakeEnqueuer{fail: map[string]bool{"project_worker": true}}

	d := NewDispatcher(store, pub, zap.NewNop())
	if got := d.ProcessPending(context.Background()); got != 1 {
		t.Fatalf("ProcessPending() = %d, want 1", got)
	}

	if len(pub.calls) != 1 || pub.calls[0].topic != "offer_queue" {
		t.Fatalf("unexpected publishes: %+v", pub.calls)
	}
	if pub.calls[0].traceID != "t-1" {
		t.Errorf("trace id = %q, want t-1", pub.calls[0].traceID)
	}
	if len(store.sent) != 1 || store.sent[0] != 1 {
		t.Errorf("sent = %v, want [1]", store.sent)
	}
	if store.marked[2] != 1 {
		t.Errorf("event 2 should be marked failed once, got %d", store.marked[2])
	}
}

func TestDispatcherRespectsBatchSize(t *testing.T) {
	store := newFakeStore(
		&Event{ID: 1, RoutingKey: "a", Payload: json.RawMessage(`{}`)},
		&Event{ID: 2, RoutingKey: "a", Payload: json.RawMessage(`{}`)},
		&Event{ID: 3, RoutingKey: "a", Payload: json.RawMessage(`{}`)},
	)
	pub := &fakeEnqueuer{}
	d := NewDispatcher(store, pub, zap.NewNop()).WithBatchSize(2)

	if got := d.ProcessPending(context.Background()); got != 2 {
		t.Errorf("ProcessPending() = %d, want 2", got)
	}
}

func TestReplayFailedEvents(t *testing.T) {
	store := newFakeStore(
		&Event{ID: 7, RoutingKey: "missed_deadline", Status: StatusFailed, Payload: json.RawMessage(`{}`)},
	)
	pub := &fakeEnqueuer{}
	svc := NewReplayService(store, pub)

	n, err := svc.ReplayFailedEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ReplayFailedEvents() error = %v", err)
	}
	if n != 1 || len(store.sent) != 1 {
		t.Errorf("replayed %d, sent %v", n, store.sent)
	}
}

func TestReplayUnknownEvent(t *testing.T) {
	svc := NewReplayService(newFakeStore(), &fakeEnqueuer{})
	if err := svc.ReplayEvent(context.Background(), 99); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("ReplayEvent() error = %v, want ErrEventNotFound", err)
	}
}

func TestRepublishKeepsMessageID(t *testing.T) {
	event := &Event{ID: 12, RoutingKey: "withdraw_counter_offer_queue", Payload: json.RawMessage(`{"offer_id":3}`)}
	store := newFakeStore(event)
	pub := &fakeEnqueuer{}
	d := NewDispatcher(store, pub, zap.NewNop())

	// a lost MarkAsSent leaves the event claimable again
	d.ProcessPending(context.Background())
	d.ProcessPending(context.Background())
	if err := NewReplayService(store, pub).ReplayEvent(context.Background(), 12); err != nil {
		t.Fatalf("ReplayEvent() error = %v", err)
	}

	if len(pub.calls) != 3 {
		t.Fatalf("publishes = %d, want 3", len(pub.calls))
	}
	for _, c := range pub.calls {
		if c.messageID != "outbox-12" {
			t.Errorf("message id = %q, want outbox-12", c.messageID)
		}
	}
}

func TestReplayHandsBackOnPublishFailure(t *testing.T) {
	store := newFakeStore(
		&Event{ID: 7, RoutingKey: "missed_deadline", Status: StatusFailed, RetryCount: 5, Payload: json.RawMessage(`{}`)},
	)
	pub := &fakeEnqueuer{fail: map[string]bool{"missed_deadline": true}}

	if err := NewReplayService(store, pub).ReplayEvent(context.Background(), 7); err == nil {
		t.Fatal("ReplayEvent() = nil, want publish error")
	}
	if len(store.reset) != 1 || store.reset[0] != 7 {
		t.Errorf("reset = %v, want [7]", store.reset)
	}
	if len(store.sent) != 0 || store.marked[7] != 0 {
		t.Errorf("failed replay should not mark the event: sent=%v marked=%d", store.sent, store.marked[7])
	}
}
