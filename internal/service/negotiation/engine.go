// Package negotiation implements the offer and counter-offer state machine.
//
// Every transition runs inside one UnitOfWork transaction: state changes use
// conditional updates guarded by status, and follow-up jobs are enqueued in
// the same transaction so they exist only if the transition commits.
package negotiation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	contracts "skillswap/contracts/mq"
	"skillswap/internal/apperr"
	"skillswap/internal/model"
	"skillswap/pkg/metrics"
	"skillswap/pkg/trace"
)

const maxMessageLen = 2000

type Engine struct {
	uow    UnitOfWork
	views  ViewStore
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(uow UnitOfWork, views ViewStore, logger *zap.Logger) *Engine {
	return &Engine{
		uow:    uow,
		views:  views,
		logger: logger,
		now:    time.Now,
	}
}

// OfferInput is the body of a new offer.
type OfferInput struct {
	Message    string
	StartDate  time.Time
	Milestones model.Milestones
}

// TermsInput carries optional edits for counters and updates.
type TermsInput struct {
	Message    *string
	StartDate  *time.Time
	Milestones model.Milestones
}

func (in TermsInput) validateMessage() error {
	if in.Message == nil {
		return nil
	}
	return validateMessage(*in.Message)
}

func validateMessage(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return apperr.Validation(apperr.CodeInvalidInput, "Message must not be empty")
	}
	if len(msg) > maxMessageLen {
		return apperr.Validation(apperr.CodeInvalidInput, "Message is too long")
	}
	return nil
}

// MakeOffer creates a Pending offer from senderID on postID.
func (e *Engine) MakeOffer(ctx context.Context, senderID, postID int64, in OfferInput) (offer *model.Offer, err error) {
	defer e.record("make_offer", &err)

	if err := validateMessage(in.Message); err != nil {
		return nil, err
	}
	if in.StartDate.IsZero() {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "start_date is required")
	}
	if err := ValidateMilestones(in.Milestones); err != nil {
		return nil, err
	}

	err = e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		sender, err := r.Users.GetByID(ctx, senderID)
		if err != nil {
			return notFound(err, apperr.CodeUserNotFound, "User not found!")
		}
		if !sender.IsVerified {
			return apperr.Forbidden(apperr.CodeUserNotVerified, "Please verify your email first!")
		}
		if !sender.Available {
			return apperr.Validation(apperr.CodeAlreadyWorking,
				"You are already working on a project. Please complete it before starting a new one.")
		}

		post, err := r.Posts.GetByID(ctx, postID)
		if err != nil {
			return notFound(err, apperr.CodePostNotFound, "No posts found")
		}
		if post.UserID == senderID {
			return apperr.Validation(apperr.CodeInvalidInput, "You can't make an offer on your own post!")
		}

		dup, err := r.Offers.HasPending(ctx, senderID, postID)
		if err != nil {
			return err
		}
		if dup {
			return apperr.Conflict(apperr.CodeDuplicatePendingOffer,
				"You have already sent an offer to this user, please wait for a response first!")
		}
		if sender.SkillID != post.RequiredSkillID {
			return apperr.Validation(apperr.CodeSkillMismatch, "You don't have the skill required in the post!")
		}

		scheduled, end := Schedule(in.StartDate, in.Milestones)
		offer = &model.Offer{
			SenderID:   senderID,
			ReceiverID: post.UserID,
			PostID:     postID,
			Status:     model.OfferPending,
			Message:    in.Message,
			StartDate:  in.StartDate,
			EndDate:    end,
			Milestones: scheduled,
			CreatedAt:  e.now(),
		}
		if err := r.Offers.Create(ctx, offer); err != nil {
			return err
		}

		return r.Jobs.Enqueue(ctx, contracts.TopicOffer, offer.ID, contracts.OfferCreatedPayload{
			OfferID:         offer.ID,
			ReceiverID:      post.UserID,
			SenderFirstName: sender.FirstName,
			ReceiverSkill:   post.SkillName,
			SenderSkill:     sender.SkillName,
			TraceID:         trace.FromContext(ctx),
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Offer created",
		zap.Int64("offer_id", offer.ID),
		zap.Int64("sender_id", senderID),
		zap.Int64("post_id", postID),
	)
	return offer, nil
}

// CounterOffer lets the offer receiver propose new durations, message or
// start date. Only durations of existing milestones may change.
func (e *Engine) CounterOffer(ctx context.Context, offerID, responderID int64, in TermsInput) (counter *model.CounterOffer, err error) {
	defer e.record("counter_offer", &err)

	if err := in.validateMessage(); err != nil {
		return nil, err
	}

	err = e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		o, err := r.Offers.GetByID(ctx, offerID)
		if err != nil {
			return notFound(err, apperr.CodeOfferNotFound, "No offers found!")
		}
		if o.ReceiverID != responderID {
			return apperr.NotFound(apperr.CodeOfferNotFound, "No offers found!")
		}
		if err := terminalConflict(o); err != nil {
			return err
		}
		if o.IsCountered {
			return alreadyCountered()
		}

		merged := MergeDurations(o.Milestones, nil)
		if in.Milestones != nil {
			if err := ValidateDurationEdit(o.Milestones, in.Milestones); err != nil {
				return err
			}
			merged = MergeDurations(o.Milestones, in.Milestones)
		}
		start := o.StartDate
		if in.StartDate != nil {
			start = *in.StartDate
		}
		scheduled, end := Schedule(start, merged)

		counter = &model.CounterOffer{
			Message:    in.Message,
			StartDate:  &start,
			EndDate:    &end,
			Milestones: scheduled,
			CreatedAt:  e.now(),
		}
		if err := r.CounterOffers.Create(ctx, counter); err != nil {
			return err
		}

		ok, err := r.Offers.AttachCounterOffer(ctx, o.ID, counter.ID)
		if err != nil {
			return err
		}
		if !ok {
			return e.lostRace(ctx, r, o.ID, false)
		}

		return r.Jobs.Enqueue(ctx, contracts.TopicCounterOffer, o.ID, contracts.CounterOfferPayload{
			OfferID:        o.ID,
			CounterOfferID: counter.ID,
			ReceiverID:     o.ReceiverID,
			SenderID:       o.SenderID,
			TraceID:        trace.FromContext(ctx),
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Offer countered",
		zap.Int64("offer_id", offerID),
		zap.Int64("counter_offer_id", counter.ID),
	)
	return counter, nil
}

// AcceptOffer accepts an uncountered Pending offer as its receiver.
func (e *Engine) AcceptOffer(ctx context.Context, offerID, receiverID int64) (err error) {
	defer e.record("accept_offer", &err)

	err = e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		o, err := r.Offers.GetByID(ctx, offerID)
		if err != nil {
			return notFound(err, apperr.CodeOfferNotFound, "No offers found!")
		}
		if o.ReceiverID != receiverID {
			return apperr.NotFound(apperr.CodeOfferNotFound, "No offers found!")
		}
		if err := terminalConflict(o); err != nil {
			return err
		}
		if o.IsCountered {
			return offerCountered()
		}

		ok, err := r.Offers.Transition(ctx, o.ID, false, model.OfferAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return e.lostRace(ctx, r, o.ID, false)
		}
		return e.reserveAndMaterialize(ctx, r, o, contracts.TopicAcceptOffer)
	})
	if err != nil {
		return acceptanceError(err)
	}

	e.logger.Info("Offer accepted", zap.Int64("offer_id", offerID))
	return nil
}

// AcceptCounterOffer accepts a counter as the original offer sender. The
// counter's terms replace the offer's, field by field.
func (e *Engine) AcceptCounterOffer(ctx context.Context, counterOfferID, responderID int64) (err error) {
	defer e.record("accept_counter_offer", &err)

	var offerID int64
	err = e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		o, err := e.counterParent(ctx, r, counterOfferID, func(o *model.Offer) bool { return o.SenderID == responderID })
		if err != nil {
			return err
		}
		offerID = o.ID
		if err := terminalConflict(o); err != nil {
			return err
		}
		if !o.IsCountered {
			return notCountered()
		}

		ok, err := r.Offers.Transition(ctx, o.ID, true, model.OfferAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return e.lostRace(ctx, r, o.ID, true)
		}

		c, err := r.CounterOffers.GetByID(ctx, counterOfferID)
		if err != nil {
			return apperr.Wrap(apperr.KindIntegrity, apperr.CodeAcceptanceFailed,
				"Counter offer is missing", err)
		}
		terms := resolveTerms(o, c)
		if err := r.Offers.SetTerms(ctx, o.ID, terms); err != nil {
			return err
		}
		o.Message = *terms.Message
		o.StartDate = *terms.StartDate
		o.EndDate = *terms.EndDate
		o.Milestones = terms.Milestones

		return e.reserveAndMaterialize(ctx, r, o, contracts.TopicAcceptCounterOffer)
	})
	if err != nil {
		return acceptanceError(err)
	}

	e.logger.Info("Counter offer accepted",
		zap.Int64("offer_id", offerID),
		zap.Int64("counter_offer_id", counterOfferID),
	)
	return nil
}

// resolveTerms picks counter values over offer values. The end date is
// always derived so it stays start plus the summed durations.
func resolveTerms(o *model.Offer, c *model.CounterOffer) TermsUpdate {
	msg := o.Message
	if c.Message != nil {
		msg = *c.Message
	}
	start := o.StartDate
	if c.StartDate != nil {
		start = *c.StartDate
	}
	ms := o.Milestones
	if len(c.Milestones) > 0 {
		ms = c.Milestones
	}
	scheduled, end := Schedule(start, ms)
	return TermsUpdate{
		Message:    &msg,
		StartDate:  &start,
		EndDate:    &end,
		Milestones: scheduled,
	}
}

// reserveAndMaterialize runs the common tail of both acceptance paths.
func (e *Engine) reserveAndMaterialize(ctx context.Context, r Repos, o *model.Offer, notifyTopic string) error {
	post, err := r.Posts.GetByID(ctx, o.PostID)
	if err != nil {
		return apperr.Wrap(apperr.KindIntegrity, apperr.CodeAcceptanceFailed, "Post is missing", err)
	}
	// the project worker cannot build user_1's side without the post's milestones
	if len(post.Milestones) == 0 {
		return apperr.New(apperr.KindIntegrity, apperr.CodeAcceptanceFailed, "Post has no milestones")
	}

	n, err := r.Users.ReserveForProject(ctx, o.SenderID, o.ReceiverID)
	if err != nil {
		return err
	}
	if n != 2 {
		return apperr.Conflict(apperr.CodeAlreadyWorking,
			"One of the parties is already working on a project")
	}

	if err := r.Posts.MarkUnavailable(ctx, o.PostID); err != nil {
		return err
	}

	traceID := trace.FromContext(ctx)
	if err := r.Jobs.Enqueue(ctx, notifyTopic, o.ID, contracts.OfferDecisionPayload{
		OfferID:    o.ID,
		ReceiverID: o.ReceiverID,
		SenderID:   o.SenderID,
		TraceID:    traceID,
	}); err != nil {
		return err
	}

	user2Deadline := o.EndDate
	return r.Jobs.Enqueue(ctx, contracts.TopicProject, o.ID, contracts.ProjectPayload{
		OfferID:         o.ID,
		User1ID:         o.ReceiverID,
		User1Milestones: post.Milestones,
		User1Deadline:   post.EndDate,
		User2ID:         o.SenderID,
		User2Milestones: o.Milestones,
		User2Deadline:   &user2Deadline,
		AcceptedAt:      e.now().UTC(),
		TraceID:         traceID,
	})
}

// RejectOffer rejects an uncountered Pending offer as its receiver.
func (e *Engine) RejectOffer(ctx context.Context, offerID, receiverID int64) (err error) {
	defer e.record("reject_offer", &err)

	return e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		o, err := r.Offers.GetByID(ctx, offerID)
		if err != nil {
			return notFound(err, apperr.CodeOfferNotFound, "Offer not found!")
		}
		if o.ReceiverID != receiverID {
			return apperr.NotFound(apperr.CodeOfferNotFound, "Offer not found!")
		}
		if err := terminalConflict(o); err != nil {
			return err
		}
		if o.IsCountered {
			return offerCountered()
		}

		ok, err := r.Offers.Transition(ctx, o.ID, false, model.OfferRejected)
		if err != nil {
			return err
		}
		if !ok {
			return e.lostRace(ctx, r, o.ID, false)
		}

		return r.Jobs.Enqueue(ctx, contracts.TopicRejectOffer, o.ID, contracts.OfferDecisionPayload{
			OfferID:    o.ID,
			ReceiverID: o.ReceiverID,
			SenderID:   o.SenderID,
			TraceID:    trace.FromContext(ctx),
		})
	})
}

// RejectCounterOffer rejects a counter as the original offer sender, which
// ends the negotiation.
func (e *Engine) RejectCounterOffer(ctx context.Context, counterOfferID, responderID int64) (err error) {
	defer e.record("reject_counter_offer", &err)

	return e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		o, err := e.counterParent(ctx, r, counterOfferID, func(o *model.Offer) bool { return o.SenderID == responderID })
		if err != nil {
			return err
		}
		if err := terminalConflict(o); err != nil {
			return err
		}
		if !o.IsCountered {
			return notCountered()
		}

		ok, err := r.Offers.Transition(ctx, o.ID, true, model.OfferRejected)
		if err != nil {
			return err
		}
		if !ok {
			return e.lostRace(ctx, r, o.ID, true)
		}

		return r.Jobs.Enqueue(ctx, contracts.TopicRejectCounterOffer, o.ID, contracts.OfferDecisionPayload{
			OfferID:    o.ID,
			ReceiverID: o.ReceiverID,
			SenderID:   o.SenderID,
			TraceID:    trace.FromContext(ctx),
		})
	})
}

// WithdrawCounterOffer lets the counter author take it back, returning the
// offer to its uncountered Pending state.
func (e *Engine) WithdrawCounterOffer(ctx context.Context, counterOfferID, responderID int64) (err error) {
	defer e.record("withdraw_counter_offer", &err)

	return e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		o, err := e.counterParent(ctx, r, counterOfferID, func(o *model.Offer) bool { return o.ReceiverID == responderID })
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return notEditable()
		}
		if !o.IsCountered {
			return notCountered()
		}

		ok, err := r.Offers.DetachCounterOffer(ctx, o.ID)
		if err != nil {
			return err
		}
		if !ok {
			return notEditable()
		}
		if _, err := r.CounterOffers.Delete(ctx, counterOfferID); err != nil {
			return err
		}

		return r.Jobs.Enqueue(ctx, contracts.TopicWithdrawCounterOffer, o.ID, contracts.OfferDecisionPayload{
			OfferID:    o.ID,
			ReceiverID: o.ReceiverID,
			SenderID:   o.SenderID,
			TraceID:    trace.FromContext(ctx),
		})
	})
}

// UpdateSentOffer edits a Pending offer as its sender. Changing the start
// date or milestones reschedules every milestone.
func (e *Engine) UpdateSentOffer(ctx context.Context, offerID, senderID int64, in TermsInput) (updated *model.Offer, err error) {
	defer e.record("update_offer", &err)

	if err := in.validateMessage(); err != nil {
		return nil, err
	}
	if in.Milestones != nil {
		if err := ValidateMilestones(in.Milestones); err != nil {
			return nil, err
		}
	}

	err = e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		o, err := r.Offers.GetByID(ctx, offerID)
		if err != nil {
			return notFound(err, apperr.CodeOfferNotFound, "No offers found!")
		}
		if o.SenderID != senderID {
			return apperr.NotFound(apperr.CodeOfferNotFound, "No offers found!")
		}
		if o.Status != model.OfferPending {
			return notEditable()
		}
		if o.IsCountered && in.Milestones != nil {
			return apperr.Conflict(apperr.CodeOfferCountered,
				"Your offer has been countered, resolve the counter offer before changing milestones!")
		}

		u := TermsUpdate{Message: in.Message}
		if in.Milestones != nil || in.StartDate != nil {
			start := o.StartDate
			if in.StartDate != nil {
				start = *in.StartDate
			}
			ms := o.Milestones
			if in.Milestones != nil {
				ms = in.Milestones
			}
			scheduled, end := Schedule(start, ms)
			u.StartDate, u.EndDate, u.Milestones = &start, &end, scheduled
		}

		ok, err := r.Offers.UpdateTerms(ctx, o.ID, u)
		if err != nil {
			return err
		}
		if !ok {
			return notEditable()
		}

		applyTerms(o, u)
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateSentCounterOffer edits a Pending counter as its author. Milestone
// edits are merged into the counter and re-checked against the offer.
func (e *Engine) UpdateSentCounterOffer(ctx context.Context, counterOfferID, responderID int64, in TermsInput) (updated *model.CounterOffer, err error) {
	defer e.record("update_counter_offer", &err)

	if err := in.validateMessage(); err != nil {
		return nil, err
	}

	err = e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		o, err := e.counterParent(ctx, r, counterOfferID, func(o *model.Offer) bool { return o.ReceiverID == responderID })
		if err != nil {
			return err
		}
		if !o.IsCountered {
			return notCountered()
		}
		pending, err := r.Offers.LockPending(ctx, o.ID)
		if err != nil {
			return err
		}
		if !pending {
			return notEditable()
		}

		c, err := r.CounterOffers.GetByID(ctx, counterOfferID)
		if err != nil {
			return notFound(err, apperr.CodeCounterOfferNotFound, "No counter offers found!")
		}

		u, err := rescheduleCounter(o, c, in)
		if err != nil {
			return err
		}
		if err := r.CounterOffers.Update(ctx, c.ID, u); err != nil {
			return err
		}

		applyCounterTerms(c, u)
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func rescheduleCounter(o *model.Offer, c *model.CounterOffer, in TermsInput) (TermsUpdate, error) {
	u := TermsUpdate{Message: in.Message}
	if in.Milestones == nil && in.StartDate == nil {
		return u, nil
	}

	base := c.Milestones
	if len(base) == 0 {
		base = o.Milestones
	}
	ms := MergeDurations(base, nil)
	if in.Milestones != nil {
		if err := ValidateDurationEdit(o.Milestones, in.Milestones); err != nil {
			return u, err
		}
		ms = MergeDurations(base, in.Milestones)
	}

	start := o.StartDate
	if c.StartDate != nil {
		start = *c.StartDate
	}
	if in.StartDate != nil {
		start = *in.StartDate
	}
	scheduled, end := Schedule(start, ms)
	u.StartDate, u.EndDate, u.Milestones = &start, &end, scheduled
	return u, nil
}

func applyTerms(o *model.Offer, u TermsUpdate) {
	if u.Message != nil {
		o.Message = *u.Message
	}
	if u.StartDate != nil {
		o.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		o.EndDate = *u.EndDate
	}
	if u.Milestones != nil {
		o.Milestones = u.Milestones
	}
}

func applyCounterTerms(c *model.CounterOffer, u TermsUpdate) {
	if u.Message != nil {
		c.Message = u.Message
	}
	if u.StartDate != nil {
		c.StartDate = u.StartDate
	}
	if u.EndDate != nil {
		c.EndDate = u.EndDate
	}
	if u.Milestones != nil {
		c.Milestones = u.Milestones
	}
}

// counterParent loads the offer owning counterOfferID and hides it from
// callers that fail isParty.
func (e *Engine) counterParent(ctx context.Context, r Repos, counterOfferID int64, isParty func(*model.Offer) bool) (*model.Offer, error) {
	o, err := r.Offers.GetByCounterOfferID(ctx, counterOfferID)
	if err != nil {
		return nil, notFound(err, apperr.CodeCounterOfferNotFound, "No counter offers found for this offer!")
	}
	if !isParty(o) {
		return nil, apperr.NotFound(apperr.CodeCounterOfferNotFound, "No counter offers found for this offer!")
	}
	return o, nil
}

// lostRace explains why a guarded update matched no row.
func (e *Engine) lostRace(ctx context.Context, r Repos, offerID int64, wantCountered bool) error {
	o, err := r.Offers.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if err := terminalConflict(o); err != nil {
		return err
	}
	switch {
	case o.IsCountered && !wantCountered:
		return alreadyCountered()
	case !o.IsCountered && wantCountered:
		return notCountered()
	}
	return apperr.Conflict(apperr.CodeNotEditable, "The offer changed, please try again")
}

func (e *Engine) record(transition string, errp *error) {
	result := "success"
	if *errp != nil {
		result = apperr.KindOf(*errp).String()
	}
	metrics.RecordOfferTransition(transition, result)
}

func terminalConflict(o *model.Offer) error {
	switch o.Status {
	case model.OfferAccepted:
		return apperr.Conflict(apperr.CodeAlreadyAccepted, "This offer has already been accepted!")
	case model.OfferRejected:
		return apperr.Conflict(apperr.CodeAlreadyRejected, "This offer has already been rejected!")
	}
	return nil
}

func offerCountered() error {
	return apperr.Conflict(apperr.CodeOfferCountered,
		"Your offer has been countered, please review the new offer first!")
}

func alreadyCountered() error {
	return apperr.Conflict(apperr.CodeAlreadyCountered,
		"You have already countered the offer, wait for the other user's response!")
}

func notCountered() error {
	return apperr.Conflict(apperr.CodeNotCountered, "Offer is not countered to accept or reject!")
}

func notEditable() error {
	return apperr.Conflict(apperr.CodeNotEditable, "You can't update a rejected or accepted offer!")
}

func notFound(err error, code, msg string) error {
	if errors.Is(err, model.ErrNotFound) {
		return apperr.NotFound(code, msg)
	}
	return err
}

// acceptanceError keeps taxonomy errors and reports anything else as a
// rolled-back acceptance.
func acceptanceError(err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Wrap(apperr.KindIntegrity, apperr.CodeAcceptanceFailed,
		"Error in updating users and offer!", err)
}
