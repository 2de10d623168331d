package negotiation

import (
	"context"

	"skillswap/internal/apperr"
	"skillswap/internal/model"
)

// MyOffers lists Pending offers received by userID.
func (e *Engine) MyOffers(ctx context.Context, userID int64) ([]model.OfferView, error) {
	offers, err := e.views.ReceivedPendingOffers(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return nil, apperr.NotFound(apperr.CodeOfferNotFound, "No offers yet!")
	}
	return offers, nil
}

func (e *Engine) MyOffer(ctx context.Context, offerID, userID int64) (*model.OfferView, error) {
	offer, err := e.views.ReceivedOffer(ctx, offerID, userID)
	if err != nil {
		return nil, notFound(err, apperr.CodeOfferNotFound, "No offers yet!")
	}
	return offer, nil
}

// MyCounterOffers lists Pending counters on offers userID sent.
func (e *Engine) MyCounterOffers(ctx context.Context, userID int64) ([]model.CounterOfferView, error) {
	return nonEmpty(e.views.CounterOffersForSender(ctx, userID, nil))("No counter offers yet!")
}

func (e *Engine) MyCounterOffer(ctx context.Context, counterOfferID, userID int64) (*model.CounterOfferView, error) {
	return first(e.views.CounterOffersForSender(ctx, userID, &counterOfferID))
}

// MySentCounterOffers lists Pending counters userID authored.
func (e *Engine) MySentCounterOffers(ctx context.Context, userID int64) ([]model.CounterOfferView, error) {
	return nonEmpty(e.views.CounterOffersByReceiver(ctx, userID, nil))("You haven't sent any counter offers yet!")
}

func (e *Engine) MySentCounterOffer(ctx context.Context, counterOfferID, userID int64) (*model.CounterOfferView, error) {
	return first(e.views.CounterOffersByReceiver(ctx, userID, &counterOfferID))
}

func nonEmpty(views []model.CounterOfferView, err error) func(string) ([]model.CounterOfferView, error) {
	return func(msg string) ([]model.CounterOfferView, error) {
		if err != nil {
			return nil, err
		}
		if len(views) == 0 {
			return nil, apperr.NotFound(apperr.CodeCounterOfferNotFound, msg)
		}
		return views, nil
	}
}

func first(views []model.CounterOfferView, err error) (*model.CounterOfferView, error) {
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, apperr.NotFound(apperr.CodeCounterOfferNotFound, "No counter offers found!")
	}
	return &views[0], nil
}
