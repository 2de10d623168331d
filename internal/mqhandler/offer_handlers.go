package mqhandler

import (
	"context"
	"time"

	"go.uber.org/zap"

	contracts "skillswap/contracts/mq"
	"skillswap/internal/model"
	"skillswap/internal/notify"
	"skillswap/internal/realtime"
	"skillswap/internal/service/chat"
	"skillswap/pkg/mq"
)

// StartChatting is the system message posted into a freshly provisioned room.
const StartChatting = "Offer accepted. Start chatting!"

// Offer emails the post owner about a new offer.
func (h *Handlers) Offer(ctx context.Context, msg mq.Message) error {
	var p contracts.OfferCreatedPayload
	if err := decode(msg, &p); err != nil {
		return err
	}
	log := h.log(ctx, msg).With(zap.Int64("offer_id", p.OfferID))

	receiver, err := h.Users.GetByID(ctx, p.ReceiverID)
	if err != nil {
		return classify(err)
	}
	vars := map[string]any{
		"SenderFirstName": p.SenderFirstName,
		"SenderSkill":     p.SenderSkill,
		"ReceiverSkill":   p.ReceiverSkill,
		"OfferID":         p.OfferID,
	}
	return classify(h.notify(ctx, log, key(p.OfferID), receiver, notify.OfferReceived, vars))
}

// CounterOffer re-asserts the counter link on the offer and emails the
// offer sender.
func (h *Handlers) CounterOffer(ctx context.Context, msg mq.Message) error {
	var p contracts.CounterOfferPayload
	if err := decode(msg, &p); err != nil {
		return err
	}
	log := h.log(ctx, msg).With(zap.Int64("offer_id", p.OfferID), zap.Int64("counter_offer_id", p.CounterOfferID))

	offer, err := h.Offers.GetByID(ctx, p.OfferID)
	if err != nil {
		return classify(err)
	}
	if !offer.IsCountered && offer.Status == model.OfferPending {
		// The engine links the counter in the same tx; this only repairs rows
		// written before that was true.
		ok, err := h.Offers.AttachCounterOffer(ctx, offer.ID, p.CounterOfferID)
		if err != nil {
			return classify(err)
		}
		if ok {
			log.Warn("Counter offer was not linked, repaired")
		}
	}

	sender, err := h.Users.GetByID(ctx, p.SenderID)
	if err != nil {
		return classify(err)
	}
	counterSender, err := h.Users.GetByID(ctx, p.ReceiverID)
	if err != nil {
		return classify(err)
	}
	vars := map[string]any{
		"CounterSenderFirstName": counterSender.FirstName,
		"OfferID":                p.OfferID,
	}
	return classify(h.notify(ctx, log, key(p.CounterOfferID), sender, notify.CounterOfferReceived, vars))
}

// AcceptOffer opens the chat room and emails the offer sender.
func (h *Handlers) AcceptOffer(ctx context.Context, msg mq.Message) error {
	return h.accepted(ctx, msg, false)
}

// AcceptCounterOffer opens the counter room and emails the counter author.
func (h *Handlers) AcceptCounterOffer(ctx context.Context, msg mq.Message) error {
	return h.accepted(ctx, msg, true)
}

func (h *Handlers) accepted(ctx context.Context, msg mq.Message, countered bool) error {
	var p contracts.OfferDecisionPayload
	if err := decode(msg, &p); err != nil {
		return err
	}
	log := h.log(ctx, msg).With(zap.Int64("offer_id", p.OfferID))

	sender, err := h.Users.GetByID(ctx, p.SenderID)
	if err != nil {
		return classify(err)
	}
	receiver, err := h.Users.GetByID(ctx, p.ReceiverID)
	if err != nil {
		return classify(err)
	}

	room := realtime.OfferRoom(p.OfferID, p.SenderID, p.ReceiverID)
	if countered {
		room = realtime.CounterOfferRoom(p.OfferID, p.SenderID, p.ReceiverID)
	}
	if err := h.Rooms.Provision(ctx, room, p.SenderID, p.ReceiverID); err != nil {
		return classify(err)
	}
	if err := h.announce(ctx, log, room, p.SenderID, p.ReceiverID); err != nil {
		return classify(err)
	}

	// The decider is the counterpart of whoever made the accepted proposal.
	to, other, tmpl := sender, receiver, notify.OfferAccepted
	if countered {
		to, other, tmpl = receiver, sender, notify.CounterOfferAccepted
	}
	vars := map[string]any{
		"OtherFirstName": other.FirstName,
		"SenderSkill":    sender.SkillName,
		"ReceiverSkill":  receiver.SkillName,
		"RoomID":         room,
		"OfferID":        p.OfferID,
	}
	return classify(h.notify(ctx, log, key(p.OfferID), to, tmpl, vars))
}

// announce posts the start message and pings both personal rooms once per room.
func (h *Handlers) announce(ctx context.Context, log *zap.Logger, room string, members ...int64) error {
	if !h.Dedup.AcquireOnce(ctx, "room_announce", room) {
		log.Info("Room already announced", zap.String("room_id", room))
		return nil
	}
	err := h.Rooms.Emit(ctx, room, realtime.EventMessage, chat.Outgoing{
		Message:   StartChatting,
		Timestamp: time.Now().UTC(),
	})
	for _, id := range members {
		if err != nil {
			break
		}
		err = h.Rooms.Emit(ctx, realtime.UserRoom(id), realtime.EventOfferAccepted, map[string]string{"roomId": room})
	}
	if err != nil {
		h.Dedup.Release(ctx, "room_announce", room)
		return err
	}
	log.Info("Chat room ready", zap.String("room_id", room))
	return nil
}

// RejectOffer emails the offer sender.
func (h *Handlers) RejectOffer(ctx context.Context, msg mq.Message) error {
	return h.decision(ctx, msg, notify.OfferRejected, false)
}

// RejectCounterOffer emails the counter author, who is the offer receiver.
func (h *Handlers) RejectCounterOffer(ctx context.Context, msg mq.Message) error {
	return h.decision(ctx, msg, notify.CounterOfferRejected, true)
}

// WithdrawCounterOffer emails the offer sender that the counter is gone.
func (h *Handlers) WithdrawCounterOffer(ctx context.Context, msg mq.Message) error {
	return h.decision(ctx, msg, notify.CounterOfferWithdrawn, false)
}

func (h *Handlers) decision(ctx context.Context, msg mq.Message, tmpl notify.Template, toReceiver bool) error {
	var p contracts.OfferDecisionPayload
	if err := decode(msg, &p); err != nil {
		return err
	}
	log := h.log(ctx, msg).With(zap.Int64("offer_id", p.OfferID))

	toID, otherID := p.SenderID, p.ReceiverID
	if toReceiver {
		toID, otherID = p.ReceiverID, p.SenderID
	}
	to, err := h.Users.GetByID(ctx, toID)
	if err != nil {
		return classify(err)
	}
	other, err := h.Users.GetByID(ctx, otherID)
	if err != nil {
		return classify(err)
	}
	vars := map[string]any{
		"OtherFirstName": other.FirstName,
		"OfferID":        p.OfferID,
	}
	// Withdraw can repeat for the same offer, so the key includes the message id.
	k := key(p.OfferID)
	if tmpl == notify.CounterOfferWithdrawn && msg.ID != "" {
		k += ":" + msg.ID
	}
	return classify(h.notify(ctx, log, k, to, tmpl, vars))
}
