package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the redis pub/sub channel carrying room events.
const Channel = "skillswap:rooms"

// Envelope is one event addressed to a room.
type Envelope struct {
	Room  string          `json:"room"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Rooms is the redis-backed room registry and event bus.
type Rooms struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRooms(rdb *redis.Client, logger *zap.Logger) *Rooms {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rooms{rdb: rdb, logger: logger}
}

func membersKey(room string) string {
	return "room:" + room + ":members"
}

// Provision creates room with the given members. Provisioning an existing
// room only adds members.
func (r *Rooms) Provision(ctx context.Context, room string, members ...int64) error {
	if len(members) == 0 {
		return fmt.Errorf("provision room %s: no members", room)
	}
	ids := make([]any, 0, len(members))
	for _, m := range members {
		ids = append(ids, strconv.FormatInt(m, 10))
	}
	if err := r.rdb.SAdd(ctx, membersKey(room), ids...).Err(); err != nil {
		return fmt.Errorf("provision room %s: %w", room, err)
	}
	r.logger.Info("Room provisioned", zap.String("room", room), zap.Int64s("members", members))
	return nil
}

func (r *Rooms) Exists(ctx context.Context, room string) (bool, error) {
	n, err := r.rdb.Exists(ctx, membersKey(room)).Result()
	if err != nil {
		return false, fmt.Errorf("check room %s: %w", room, err)
	}
	return n > 0, nil
}

// IsMember reports whether userID may join room. Everyone is a member of
// their own personal room.
func (r *Rooms) IsMember(ctx context.Context, room string, userID int64) (bool, error) {
	if room == UserRoom(userID) {
		return true, nil
	}
	ok, err := r.rdb.SIsMember(ctx, membersKey(room), strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("check membership of %s: %w", room, err)
	}
	return ok, nil
}

// Emit publishes event to every instance. Delivery is best-effort: clients
// not connected at publish time miss the event.
func (r *Rooms) Emit(ctx context.Context, room, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	msg, err := json.Marshal(Envelope{Room: room, Event: event, Data: data})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, Channel, msg).Err(); err != nil {
		return fmt.Errorf("emit %s to %s: %w", event, room, err)
	}
	return nil
}

// Listen forwards published events to fn until ctx is done.
func (r *Rooms) Listen(ctx context.Context, fn func(Envelope)) error {
	sub := r.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("Dropping malformed room event", zap.Error(err))
				continue
			}
			fn(env)
		}
	}
}
