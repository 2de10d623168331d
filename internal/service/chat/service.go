// Package chat sends and stores messages exchanged in offer rooms.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	contracts "skillswap/contracts/mq"
	"skillswap/internal/apperr"
	"skillswap/internal/model"
	"skillswap/internal/realtime"
	"skillswap/pkg/mq"
	"skillswap/pkg/trace"
)

const (
	MaxMessageLen  = 255
	defaultHistory = 50
	maxHistory     = 200
)

type OfferReader interface {
	GetByID(ctx context.Context, id int64) (*model.Offer, error)
}

type RoomBus interface {
	Exists(ctx context.Context, room string) (bool, error)
	Emit(ctx context.Context, room, event string, payload any) error
}

type Store interface {
	// Insert appends m unless the same (room, sender, offer, timestamp)
	// row exists.
	Insert(ctx context.Context, m *model.ChatMessage) (bool, error)
	ListByRoom(ctx context.Context, room string, limit int) ([]model.ChatMessage, error)
}

// Outgoing is what room members receive.
type Outgoing struct {
	SenderID  int64     `json:"senderId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timeStamp"`
}

type Service struct {
	offers OfferReader
	rooms  RoomBus
	store  Store
	queue  mq.Enqueuer
	logger *zap.Logger
	now    func() time.Time
}

func NewService(offers OfferReader, rooms RoomBus, store Store, queue mq.Enqueuer, logger *zap.Logger) *Service {
	return &Service{
		offers: offers,
		rooms:  rooms,
		store:  store,
		queue:  queue,
		logger: logger,
		now:    time.Now,
	}
}

// SendMessage broadcasts message to the offer's room and queues it for
// storage.
func (s *Service) SendMessage(ctx context.Context, offerID, senderID int64, message string) (*Outgoing, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "Message cannot be empty!")
	}
	if utf8.RuneCountInString(message) > MaxMessageLen {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "The message cannot exceed 255 characters.")
	}

	room, err := s.roomOf(ctx, offerID, senderID)
	if err != nil {
		return nil, err
	}

	exists, err := s.rooms.Exists(ctx, room)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, apperr.CodeUnavailable, "Chat is unavailable, try again later", err)
	}
	if !exists {
		return nil, apperr.NotFound(apperr.CodeRoomNotFound, "Wrong room id!")
	}

	out := &Outgoing{SenderID: senderID, Message: message, Timestamp: s.now().UTC()}
	if err := s.rooms.Emit(ctx, room, realtime.EventMessage, out); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, apperr.CodeUnavailable, "Chat is unavailable, try again later", err)
	}

	if err := s.queue.Publish(ctx, contracts.TopicSendMessage, contracts.ChatMessagePayload{
		RoomID:    room,
		OfferID:   offerID,
		SenderID:  senderID,
		Message:   message,
		Timestamp: out.Timestamp,
		TraceID:   trace.FromContext(ctx),
	}); err != nil {
		// Already delivered live; only the history row is lost.
		s.logger.Error("Failed to queue chat message for storage",
			zap.String("room", room),
			zap.Int64("sender_id", senderID),
			zap.Error(err),
		)
	}
	return out, nil
}

// History returns the latest messages of the offer's room, oldest first.
func (s *Service) History(ctx context.Context, offerID, userID int64, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultHistory
	}
	if limit > maxHistory {
		limit = maxHistory
	}
	room, err := s.roomOf(ctx, offerID, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListByRoom(ctx, room, limit)
}

// Store persists one queued message. Replays are absorbed by the unique key.
func (s *Service) Store(ctx context.Context, p contracts.ChatMessagePayload) (bool, error) {
	if p.RoomID == "" || p.SenderID <= 0 || p.OfferID <= 0 || p.Message == "" {
		return false, apperr.Validation(apperr.CodeInvalidInput, "chat job is incomplete")
	}
	ts := p.Timestamp
	if ts.IsZero() {
		ts = s.now().UTC()
	}
	return s.store.Insert(ctx, &model.ChatMessage{
		RoomID:    p.RoomID,
		OfferID:   p.OfferID,
		SenderID:  p.SenderID,
		Message:   p.Message,
		Timestamp: ts,
	})
}

func (s *Service) roomOf(ctx context.Context, offerID, userID int64) (string, error) {
	o, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", apperr.NotFound(apperr.CodeOfferNotFound, "No offers found!")
		}
		return "", err
	}
	if o.SenderID != userID && o.ReceiverID != userID {
		return "", apperr.Forbidden(apperr.CodeNotAParty, "You are not part of this offer!")
	}
	return realtime.RoomFor(o), nil
}
