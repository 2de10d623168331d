package negotiation

import (
	"context"
	"time"

	"skillswap/internal/model"
)

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// ReserveForProject flips available from true to false for every id and
	// returns how many rows changed.
	ReserveForProject(ctx context.Context, ids ...int64) (int64, error)
}

type PostStore interface {
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	MarkUnavailable(ctx context.Context, id int64) error
}

// TermsUpdate carries nullable edits; nil keeps the stored value.
type TermsUpdate struct {
	Message    *string
	StartDate  *time.Time
	EndDate    *time.Time
	Milestones model.Milestones
}

type OfferStore interface {
	Create(ctx context.Context, o *model.Offer) error
	GetByID(ctx context.Context, id int64) (*model.Offer, error)
	GetByCounterOfferID(ctx context.Context, counterOfferID int64) (*model.Offer, error)
	HasPending(ctx context.Context, senderID, postID int64) (bool, error)
	// LockPending row-locks a Pending offer and reports whether it is Pending.
	LockPending(ctx context.Context, id int64) (bool, error)
	// Transition moves a Pending offer whose is_countered equals countered
	// to status and reports whether the row matched.
	Transition(ctx context.Context, id int64, countered bool, to model.OfferStatus) (bool, error)
	AttachCounterOffer(ctx context.Context, id, counterOfferID int64) (bool, error)
	DetachCounterOffer(ctx context.Context, id int64) (bool, error)
	// UpdateTerms edits a Pending offer.
	UpdateTerms(ctx context.Context, id int64, u TermsUpdate) (bool, error)
	// SetTerms writes terms regardless of status; callers hold the row lock.
	SetTerms(ctx context.Context, id int64, u TermsUpdate) error
}

type CounterOfferStore interface {
	Create(ctx context.Context, c *model.CounterOffer) error
	GetByID(ctx context.Context, id int64) (*model.CounterOffer, error)
	Update(ctx context.Context, id int64, u TermsUpdate) error
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, limit, offset int) ([]model.CounterOffer, error)
}

// JobQueue enqueues work inside the current transaction; jobs become
// visible to workers only after commit.
type JobQueue interface {
	Enqueue(ctx context.Context, topic string, aggregateID int64, payload any) error
}

// Repos is the set of stores bound to one transaction.
type Repos struct {
	Users         UserStore
	Posts         PostStore
	Offers        OfferStore
	CounterOffers CounterOfferStore
	Jobs          JobQueue
}

// UnitOfWork runs fn in a single transaction, rolling back on error.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// ViewStore serves the read-only views.
type ViewStore interface {
	ReceivedPendingOffers(ctx context.Context, receiverID int64) ([]model.OfferView, error)
	ReceivedOffer(ctx context.Context, offerID, receiverID int64) (*model.OfferView, error)
	// CounterOffersForSender lists Pending counters on offers userID sent.
	CounterOffersForSender(ctx context.Context, senderID int64, counterOfferID *int64) ([]model.CounterOfferView, error)
	// CounterOffersByReceiver lists Pending counters userID authored.
	CounterOffersByReceiver(ctx context.Context, receiverID int64, counterOfferID *int64) ([]model.CounterOfferView, error)
}
