package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"skillswap/internal/apperr"
	"skillswap/internal/model"
	"skillswap/internal/service/negotiation"
	"skillswap/pkg/db"
)

const pendingOfferIndex = "offers_one_pending_per_post"

type OfferRepository struct {
	db db.DBTX
}

func NewOfferRepository(conn db.DBTX) *OfferRepository {
	return &OfferRepository{db: conn}
}

const offerColumns = `
	id, sender_id, receiver_id, post_id, status, is_countered, counter_offer_id,
	message, start_date, end_date, milestones, created_at
`

func scanOffer(row pgx.Row) (*model.Offer, error) {
	var o model.Offer
	err := row.Scan(
		&o.ID, &o.SenderID, &o.ReceiverID, &o.PostID, &o.Status, &o.IsCountered, &o.CounterOfferID,
		&o.Message, &o.StartDate, &o.EndDate, &o.Milestones, &o.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// Create inserts a Pending offer. A second Pending offer from the same
// sender on the same post trips the partial unique index.
func (r *OfferRepository) Create(ctx context.Context, o *model.Offer) error {
	query := `
		INSERT INTO offers (sender_id, receiver_id, post_id, status, message, start_date, end_date, milestones, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		o.SenderID, o.ReceiverID, o.PostID, o.Status, o.Message, o.StartDate, o.EndDate, o.Milestones, o.CreatedAt,
	).Scan(&o.ID)
	if isUniqueViolation(err, pendingOfferIndex) {
		return apperr.Conflict(apperr.CodeDuplicatePendingOffer,
			"You have already sent an offer to this user, please wait for a response first!")
	}
	return err
}

func (r *OfferRepository) GetByID(ctx context.Context, id int64) (*model.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	return scanOffer(r.db.QueryRow(ctx, query, id))
}

func (r *OfferRepository) GetByCounterOfferID(ctx context.Context, counterOfferID int64) (*model.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE counter_offer_id = $1`
	return scanOffer(r.db.QueryRow(ctx, query, counterOfferID))
}

func (r *OfferRepository) HasPending(ctx context.Context, senderID, postID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM offers
			WHERE sender_id = $1 AND post_id = $2 AND status = 'Pending'
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, senderID, postID).Scan(&exists)
	return exists, err
}

// LockPending takes a row lock on the offer and reports whether it is
// still Pending.
func (r *OfferRepository) LockPending(ctx context.Context, id int64) (bool, error) {
	query := `SELECT status FROM offers WHERE id = $1 FOR UPDATE`
	var status model.OfferStatus
	err := r.db.QueryRow(ctx, query, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status == model.OfferPending, nil
}

// Transition moves a Pending offer with the given countered flag to to.
// It reports false when another transition got there first.
func (r *OfferRepository) Transition(ctx context.Context, id int64, countered bool, to model.OfferStatus) (bool, error) {
	query := `
		UPDATE offers
		SET status = $1
		WHERE id = $2 AND status = 'Pending' AND is_countered = $3
	`
	tag, err := r.db.Exec(ctx, query, to, id, countered)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OfferRepository) AttachCounterOffer(ctx context.Context, id, counterOfferID int64) (bool, error) {
	query := `
		UPDATE offers
		SET is_countered = TRUE, counter_offer_id = $1
		WHERE id = $2 AND status = 'Pending' AND NOT is_countered
	`
	tag, err := r.db.Exec(ctx, query, counterOfferID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OfferRepository) DetachCounterOffer(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE offers
		SET is_countered = FALSE, counter_offer_id = NULL
		WHERE id = $1 AND status = 'Pending' AND is_countered
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateTerms applies u to a Pending offer only.
func (r *OfferRepository) UpdateTerms(ctx context.Context, id int64, u negotiation.TermsUpdate) (bool, error) {
	query := `
		UPDATE offers
		SET message    = COALESCE($1, message),
		    start_date = COALESCE($2, start_date),
		    end_date   = COALESCE($3, end_date),
		    milestones = COALESCE($4, milestones)
		WHERE id = $5 AND status = 'Pending'
	`
	tag, err := r.db.Exec(ctx, query, u.Message, u.StartDate, u.EndDate, u.Milestones, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetTerms applies u regardless of status. Acceptance uses it after the
// status guard already passed in the same transaction.
func (r *OfferRepository) SetTerms(ctx context.Context, id int64, u negotiation.TermsUpdate) error {
	query := `
		UPDATE offers
		SET message    = COALESCE($1, message),
		    start_date = COALESCE($2, start_date),
		    end_date   = COALESCE($3, end_date),
		    milestones = COALESCE($4, milestones)
		WHERE id = $5
	`
	tag, err := r.db.Exec(ctx, query, u.Message, u.StartDate, u.EndDate, u.Milestones, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
