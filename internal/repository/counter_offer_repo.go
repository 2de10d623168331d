package repository

import (
	"context"

	"skillswap/internal/model"
	"skillswap/internal/service/negotiation"
	"skillswap/pkg/db"
)

type CounterOfferRepository struct {
	db db.DBTX
}

func NewCounterOfferRepository(conn db.DBTX) *CounterOfferRepository {
	return &CounterOfferRepository{db: conn}
}

func (r *CounterOfferRepository) Create(ctx context.Context, c *model.CounterOffer) error {
	query := `
		INSERT INTO counter_offers (message, start_date, end_date, milestones, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.db.QueryRow(ctx, query, c.Message, c.StartDate, c.EndDate, c.Milestones, c.CreatedAt).Scan(&c.ID)
}

func (r *CounterOfferRepository) GetByID(ctx context.Context, id int64) (*model.CounterOffer, error) {
	query := `
		SELECT id, message, start_date, end_date, milestones, created_at
		FROM counter_offers
		WHERE id = $1
	`
	var c model.CounterOffer
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Message, &c.StartDate, &c.EndDate, &c.Milestones, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *CounterOfferRepository) Update(ctx context.Context, id int64, u negotiation.TermsUpdate) error {
	query := `
		UPDATE counter_offers
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

// Delete removes the counter offer. The offers foreign key clears any
// remaining reference.
func (r *CounterOfferRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM counter_offers WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CounterOfferRepository) List(ctx context.Context, limit, offset int) ([]model.CounterOffer, error) {
	query := `
		SELECT id, message, start_date, end_date, milestones, created_at
		FROM counter_offers
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CounterOffer
	for rows.Next() {
		var c model.CounterOffer
		if err := rows.Scan(&c.ID, &c.Message, &c.StartDate, &c.EndDate, &c.Milestones, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
