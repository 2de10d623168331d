package negotiation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"skillswap/internal/apperr"
	"skillswap/internal/model"
)

func (e *Engine) AdminListCounterOffers(ctx context.Context, limit, offset int) ([]model.CounterOffer, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var out []model.CounterOffer
	err := e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		var err error
		out, err = r.CounterOffers.List(ctx, limit, offset)
		return err
	})
	return out, err
}

func (e *Engine) AdminGetCounterOffer(ctx context.Context, id int64) (*model.CounterOffer, error) {
	var out *model.CounterOffer
	err := e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		c, err := r.CounterOffers.GetByID(ctx, id)
		if err != nil {
			return notFound(err, apperr.CodeCounterOfferNotFound, "No counter offer found with that ID")
		}
		out = c
		return nil
	})
	return out, err
}

// AdminUpdateCounterOffer edits message or start date of a counter whose
// offer is still Pending. A new start date reschedules its milestones.
func (e *Engine) AdminUpdateCounterOffer(ctx context.Context, id int64, in TermsInput) (*model.CounterOffer, error) {
	if in.Milestones != nil {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "Milestones can't be edited by an admin")
	}
	if err := in.validateMessage(); err != nil {
		return nil, err
	}

	var out *model.CounterOffer
	err := e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		o, err := r.Offers.GetByCounterOfferID(ctx, id)
		if err != nil {
			return notFound(err, apperr.CodeCounterOfferNotFound, "No counter offer found with that ID")
		}
		pending, err := r.Offers.LockPending(ctx, o.ID)
		if err != nil {
			return err
		}
		if !pending {
			return notEditable()
		}
		c, err := r.CounterOffers.GetByID(ctx, id)
		if err != nil {
			return notFound(err, apperr.CodeCounterOfferNotFound, "No counter offer found with that ID")
		}
		u, err := rescheduleCounter(o, c, in)
		if err != nil {
			return err
		}
		if err := r.CounterOffers.Update(ctx, id, u); err != nil {
			return err
		}
		applyCounterTerms(c, u)
		out = c
		return nil
	})
	return out, err
}

// AdminDeleteCounterOffer removes a counter and un-counters its offer when
// the offer is still Pending.
func (e *Engine) AdminDeleteCounterOffer(ctx context.Context, id int64) error {
	err := e.uow.Do(ctx, func(ctx context.Context, r Repos) error {
		o, err := r.Offers.GetByCounterOfferID(ctx, id)
		switch {
		case err == nil:
			if o.Status == model.OfferPending {
				if _, err := r.Offers.DetachCounterOffer(ctx, o.ID); err != nil {
					return err
				}
			}
		case errors.Is(err, model.ErrNotFound):
		default:
			return err
		}

		deleted, err := r.CounterOffers.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return apperr.NotFound(apperr.CodeCounterOfferNotFound, "No counter offer found with that ID")
		}
		return nil
	})
	if err == nil {
		e.logger.Info("Counter offer deleted by admin", zap.Int64("counter_offer_id", id))
	}
	return err
}
