package repository

import (
	"context"

	"skillswap/internal/model"
	"skillswap/internal/service/penalty"
	"skillswap/pkg/db"
)

type UserRepository struct {
	db db.DBTX
}

func NewUserRepository(conn db.DBTX) *UserRepository {
	return &UserRepository{db: conn}
}

const userColumns = `
	u.id, u.first_name, u.email, COALESCE(u.skill_id, 0), COALESCE(s.name, ''),
	u.available, u.is_verified, u.warning_counter, u.is_user_banned, u.banned_till, u.role
`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.FirstName, &u.Email, &u.SkillID, &u.SkillName,
		&u.Available, &u.IsVerified, &u.WarningCounter, &u.IsBanned, &u.BannedTill, &u.Role,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetByID returns the user with the name of their skill.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN skills s ON s.id = u.skill_id
		WHERE u.id = $1
	`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// ReserveForProject marks every available user in ids as busy and returns
// how many rows changed. Callers compare it with len(ids).
func (r *UserRepository) ReserveForProject(ctx context.Context, ids ...int64) (int64, error) {
	query := `
		UPDATE users
		SET available = FALSE
		WHERE id = ANY($1) AND available
	`
	tag, err := r.db.Exec(ctx, query, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Release makes users available again after their project ends.
func (r *UserRepository) Release(ctx context.Context, ids ...int64) error {
	query := `UPDATE users SET available = TRUE WHERE id = ANY($1)`
	_, err := r.db.Exec(ctx, query, ids)
	return err
}

func (r *UserRepository) LockForPenalty(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN skills s ON s.id = u.skill_id
		WHERE u.id = $1
		FOR UPDATE OF u
	`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) SetPenalty(ctx context.Context, id int64, v penalty.Verdict) error {
	if v.Banned {
		query := `
			UPDATE users
			SET is_user_banned = TRUE, banned_till = $1, warning_counter = 0
			WHERE id = $2
		`
		_, err := r.db.Exec(ctx, query, v.BannedTill, id)
		return err
	}
	query := `UPDATE users SET warning_counter = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, v.WarningCounter, id)
	return err
}
