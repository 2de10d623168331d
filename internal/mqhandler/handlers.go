// Package mqhandler holds the side-effect workers, one handler per topic.
//
// Handlers run under at-least-once delivery. Row inserts are keyed so a
// replay changes nothing; emails and room messages are guarded by the
// redis deduper.
package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	contracts "skillswap/contracts/mq"
	"skillswap/internal/apperr"
	"skillswap/internal/model"
	"skillswap/internal/notify"
	"skillswap/internal/service/penalty"
	"skillswap/pkg/logger"
	"skillswap/pkg/mq"
	"skillswap/pkg/util"
)

type UserReader interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type OfferStore interface {
	GetByID(ctx context.Context, id int64) (*model.Offer, error)
	AttachCounterOffer(ctx context.Context, id, counterOfferID int64) (bool, error)
}

type Rooms interface {
	Provision(ctx context.Context, room string, members ...int64) error
	Emit(ctx context.Context, room, event string, payload any) error
}

type Deduper interface {
	AcquireOnce(ctx context.Context, handler, id string) bool
	Release(ctx context.Context, handler, id string)
}

type ProjectMaterializer interface {
	Materialize(ctx context.Context, p contracts.ProjectPayload) (bool, error)
}

type ChatStore interface {
	Store(ctx context.Context, p contracts.ChatMessagePayload) (bool, error)
}

type PenaltyApplier interface {
	Apply(ctx context.Context, projectID, userID int64) (penalty.Result, error)
}

// Deps wires the handlers to their collaborators.
type Deps struct {
	Users     UserReader
	Offers    OfferStore
	Rooms     Rooms
	Sender    notify.Sender
	Dedup     Deduper
	Projects  ProjectMaterializer
	Chat      ChatStore
	Penalties PenaltyApplier
	Logger    *zap.Logger
}

type Handlers struct {
	Deps
}

func New(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handlers{Deps: d}
}

// Register subscribes every handler on r.
func (h *Handlers) Register(r mq.Runner) error {
	routes := map[string]mq.HandlerFunc{
		contracts.TopicOffer:                h.Offer,
		contracts.TopicCounterOffer:         h.CounterOffer,
		contracts.TopicAcceptOffer:          h.AcceptOffer,
		contracts.TopicAcceptCounterOffer:   h.AcceptCounterOffer,
		contracts.TopicRejectOffer:          h.RejectOffer,
		contracts.TopicRejectCounterOffer:   h.RejectCounterOffer,
		contracts.TopicWithdrawCounterOffer: h.WithdrawCounterOffer,
		contracts.TopicProject:              h.Project,
		contracts.TopicSendMessage:          h.StoreChat,
		contracts.TopicMissedDeadline:       h.MissedDeadline,
	}
	for _, topic := range contracts.AllTopics {
		fn, ok := routes[topic]
		if !ok {
			return fmt.Errorf("no handler for topic %s", topic)
		}
		if err := r.Register(topic, fn); err != nil {
			return err
		}
	}
	return nil
}

func decode(msg mq.Message, out any) error {
	if err := json.Unmarshal(msg.Body, out); err != nil {
		return mq.Poison(fmt.Errorf("decode %s payload: %w", msg.Topic, err))
	}
	return nil
}

// classify decides whether err should be retried. Missing rows and
// rejected input never heal, so they are dead-lettered.
func classify(err error) error {
	if err == nil || mq.IsPoison(err) {
		return err
	}
	if errors.Is(err, model.ErrNotFound) {
		return mq.Poison(err)
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound, apperr.KindIntegrity:
		return mq.Poison(err)
	}
	if retryable, _ := util.IsRetryableError(err); !retryable {
		return mq.Poison(err)
	}
	return err
}

func (h *Handlers) log(ctx context.Context, msg mq.Message) *zap.Logger {
	return logger.WithTrace(ctx, h.Logger).With(
		zap.String("topic", msg.Topic),
		zap.String("message_id", msg.ID),
	)
}

// notify sends tmpl to u at most once per key. Permanent SMTP failures are
// logged and dropped; transient ones release the key and requeue.
func (h *Handlers) notify(ctx context.Context, log *zap.Logger, key string, u *model.User, tmpl notify.Template, vars map[string]any) error {
	if !h.Dedup.AcquireOnce(ctx, string(tmpl), key) {
		log.Info("Notification already sent, skipping", zap.String("template", string(tmpl)), zap.String("key", key))
		return nil
	}

	err := h.Sender.Send(ctx, notify.Recipient{Email: u.Email, Name: u.FirstName}, tmpl, vars)
	if err == nil {
		return nil
	}
	if retryable, reason := util.IsRetryableError(err); !retryable {
		log.Error("Notification dropped",
			zap.String("template", string(tmpl)),
			zap.Int64("user_id", u.ID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return nil
	}
	h.Dedup.Release(ctx, string(tmpl), key)
	return err
}

func key(parts ...int64) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += ":"
		}
		s += strconv.FormatInt(p, 10)
	}
	return s
}
