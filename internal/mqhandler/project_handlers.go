package mqhandler

import (
	"context"

	"go.uber.org/zap"

	contracts "skillswap/contracts/mq"
	"skillswap/internal/notify"
	"skillswap/pkg/mq"
)

// Project materializes the project row of an accepted offer.
func (h *Handlers) Project(ctx context.Context, msg mq.Message) error {
	var p contracts.ProjectPayload
	if err := decode(msg, &p); err != nil {
		return err
	}
	log := h.log(ctx, msg).With(zap.Int64("offer_id", p.OfferID))

	created, err := h.Projects.Materialize(ctx, p)
	if err != nil {
		return classify(err)
	}
	if !created {
		log.Info("Project already exists, skipping")
	}
	return nil
}

// StoreChat appends a live chat message to the room history.
func (h *Handlers) StoreChat(ctx context.Context, msg mq.Message) error {
	var p contracts.ChatMessagePayload
	if err := decode(msg, &p); err != nil {
		return err
	}
	if _, err := h.Chat.Store(ctx, p); err != nil {
		return classify(err)
	}
	return nil
}

// MissedDeadline applies the penalty for one late party and tells them.
func (h *Handlers) MissedDeadline(ctx context.Context, msg mq.Message) error {
	var p contracts.MissedDeadlinePayload
	if err := decode(msg, &p); err != nil {
		return err
	}
	log := h.log(ctx, msg).With(zap.Int64("project_id", p.ProjectID), zap.Int64("user_id", p.UserID))

	res, err := h.Penalties.Apply(ctx, p.ProjectID, p.UserID)
	if err != nil {
		return classify(err)
	}
	if res.Duplicate {
		log.Info("Penalty already applied")
	}

	// Re-read so a redelivery after a failed email still reports the
	// recorded verdict.
	u, err := h.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return classify(err)
	}
	vars := map[string]any{
		"ProjectID": p.ProjectID,
		"Banned":    u.IsBanned,
		"Warnings":  u.WarningCounter,
	}
	if u.BannedTill != nil {
		vars["BannedTill"] = u.BannedTill.Format("2006-01-02")
	}
	return classify(h.notify(ctx, log, key(p.ProjectID, p.UserID), u, notify.DeadlineMissed, vars))
}
