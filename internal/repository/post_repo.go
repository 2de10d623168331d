package repository

import (
	"context"

	"skillswap/internal/model"
	"skillswap/pkg/db"
)

type PostRepository struct {
	db db.DBTX
}

func NewPostRepository(conn db.DBTX) *PostRepository {
	return &PostRepository{db: conn}
}

func (r *PostRepository) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	query := `
		SELECT p.id, p.user_id, p.title, COALESCE(p.skill_id, 0), COALESCE(s.name, ''),
		       COALESCE(p.required_skill_id, 0), p.available, p.end_date, p.milestones
		FROM posts p
		LEFT JOIN skills s ON s.id = p.skill_id
		WHERE p.id = $1
	`
	var p model.Post
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.Title, &p.SkillID, &p.SkillName,
		&p.RequiredSkillID, &p.Available, &p.EndDate, &p.Milestones,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PostRepository) MarkUnavailable(ctx context.Context, id int64) error {
	query := `UPDATE posts SET available = FALSE WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
