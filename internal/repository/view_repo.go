package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"skillswap/internal/model"
	"skillswap/pkg/db"
)

// ViewRepository serves the read-only offer listings.
type ViewRepository struct {
	db db.DBTX
}

func NewViewRepository(conn db.DBTX) *ViewRepository {
	return &ViewRepository{db: conn}
}

const offerViewQuery = `
	SELECT o.id, p.title, s.first_name, s.email, r.first_name,
	       o.message, o.start_date, o.end_date, o.milestones, o.created_at
	FROM offers o
	JOIN posts p ON p.id = o.post_id
	JOIN users s ON s.id = o.sender_id
	JOIN users r ON r.id = o.receiver_id
`

func scanOfferView(row pgx.Row) (*model.OfferView, error) {
	var v model.OfferView
	err := row.Scan(
		&v.ID, &v.PostTitle, &v.SenderFirstName, &v.SenderEmail, &v.ReceiverFirstName,
		&v.Message, &v.StartDate, &v.EndDate, &v.Milestones, &v.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *ViewRepository) ReceivedPendingOffers(ctx context.Context, receiverID int64) ([]model.OfferView, error) {
	query := offerViewQuery + `
		WHERE o.receiver_id = $1 AND o.status = 'Pending'
		ORDER BY o.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OfferView
	for rows.Next() {
		v, err := scanOfferView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (r *ViewRepository) ReceivedOffer(ctx context.Context, offerID, receiverID int64) (*model.OfferView, error) {
	query := offerViewQuery + `WHERE o.id = $1 AND o.receiver_id = $2`
	return scanOfferView(r.db.QueryRow(ctx, query, offerID, receiverID))
}

const counterViewQuery = `
	SELECT c.id, o.id, r.first_name, c.message, c.start_date, c.end_date, c.milestones
	FROM offers o
	JOIN counter_offers c ON c.id = o.counter_offer_id
	JOIN users r ON r.id = o.receiver_id
	WHERE o.status = 'Pending' AND o.is_countered
`

// CounterOffersForSender lists counters received on offers senderID sent.
// A non-nil counterOfferID narrows the result to that counter.
func (r *ViewRepository) CounterOffersForSender(ctx context.Context, senderID int64, counterOfferID *int64) ([]model.CounterOfferView, error) {
	query := counterViewQuery + `
		AND o.sender_id = $1 AND ($2::bigint IS NULL OR c.id = $2)
		ORDER BY c.created_at DESC
	`
	return r.counterViews(ctx, query, senderID, counterOfferID)
}

// CounterOffersByReceiver lists counters receiverID authored.
func (r *ViewRepository) CounterOffersByReceiver(ctx context.Context, receiverID int64, counterOfferID *int64) ([]model.CounterOfferView, error) {
	query := counterViewQuery + `
		AND o.receiver_id = $1 AND ($2::bigint IS NULL OR c.id = $2)
		ORDER BY c.created_at DESC
	`
	return r.counterViews(ctx, query, receiverID, counterOfferID)
}

func (r *ViewRepository) counterViews(ctx context.Context, query string, userID int64, counterOfferID *int64) ([]model.CounterOfferView, error) {
	rows, err := r.db.Query(ctx, query, userID, counterOfferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CounterOfferView
	for rows.Next() {
		var v model.CounterOfferView
		if err := rows.Scan(&v.ID, &v.OfferID, &v.CounterSenderFirstName, &v.Message, &v.StartDate, &v.EndDate, &v.Milestones); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
