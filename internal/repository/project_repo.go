package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"skillswap/internal/model"
	"skillswap/pkg/db"
)

type ProjectRepository struct {
	db db.DBTX
}

func NewProjectRepository(conn db.DBTX) *ProjectRepository {
	return &ProjectRepository{db: conn}
}

const projectColumns = `
	id, offer_id, user_1_id, user_2_id, user_1_milestones, user_2_milestones,
	user_1_deadline, user_2_deadline, user_1_project_link, user_2_project_link,
	accepted_at, project_phase
`

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID, &p.OfferID, &p.User1ID, &p.User2ID, &p.User1Milestones, &p.User2Milestones,
		&p.User1Deadline, &p.User2Deadline, &p.User1Link, &p.User2Link,
		&p.AcceptedAt, &p.Phase,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *ProjectRepository) listProjects(ctx context.Context, query string, args ...any) ([]model.Project, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CreateOnce inserts p keyed by offer_id. Redelivered jobs hit the unique
// constraint and insert nothing.
func (r *ProjectRepository) CreateOnce(ctx context.Context, p *model.Project) (bool, error) {
	query := `
		INSERT INTO projects (
			offer_id, user_1_id, user_2_id, user_1_milestones, user_2_milestones,
			user_1_deadline, user_2_deadline, accepted_at, project_phase
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (offer_id) DO NOTHING
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		p.OfferID, p.User1ID, p.User2ID, p.User1Milestones, p.User2Milestones,
		p.User1Deadline, p.User2Deadline, p.AcceptedAt, p.Phase,
	).Scan(&p.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return scanProject(r.db.QueryRow(ctx, query, id))
}

func (r *ProjectRepository) ListForUser(ctx context.Context, userID int64) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM projects
		WHERE user_1_id = $1 OR user_2_id = $1
		ORDER BY accepted_at DESC
	`
	return r.listProjects(ctx, query, userID)
}

func (r *ProjectRepository) LockByID(ctx context.Context, id int64) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 FOR UPDATE`
	return scanProject(r.db.QueryRow(ctx, query, id))
}

func (r *ProjectRepository) SetLinks(ctx context.Context, id int64, user1Link, user2Link *string) error {
	query := `
		UPDATE projects
		SET user_1_project_link = $1, user_2_project_link = $2
		WHERE id = $3
	`
	_, err := r.db.Exec(ctx, query, user1Link, user2Link, id)
	return err
}

// Hand completes an In-progress project and frees both parties.
func (r *ProjectRepository) Hand(ctx context.Context, id int64) error {
	_, err := r.finish(ctx, id, model.PhaseHanded)
	return err
}

// Close ends an In-progress project after a missed deadline and frees both
// parties. It reports false when the project was already finished.
func (r *ProjectRepository) Close(ctx context.Context, id int64) (bool, error) {
	return r.finish(ctx, id, model.PhaseClosed)
}

func (r *ProjectRepository) finish(ctx context.Context, id int64, phase model.ProjectPhase) (bool, error) {
	query := `
		WITH done AS (
			UPDATE projects
			SET project_phase = $1
			WHERE id = $2 AND project_phase = 'In-progress'
			RETURNING user_1_id, user_2_id
		), freed AS (
			UPDATE users
			SET available = TRUE
			WHERE id IN (SELECT user_1_id FROM done UNION SELECT user_2_id FROM done)
		)
		SELECT COUNT(*) FROM done
	`
	var n int
	if err := r.db.QueryRow(ctx, query, phase, id).Scan(&n); err != nil {
		return false, err
	}
	return n == 1, nil
}

// LockOverdue returns In-progress projects with at least one deadline
// before now and no matching link. Rows locked by a concurrent scan are
// skipped.
func (r *ProjectRepository) LockOverdue(ctx context.Context, now time.Time) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM projects
		WHERE project_phase = 'In-progress'
		  AND (
		        (user_1_project_link IS NULL AND user_1_deadline < $1)
		     OR (user_2_project_link IS NULL AND user_2_deadline < $1)
		  )
		ORDER BY id
		FOR UPDATE SKIP LOCKED
	`
	return r.listProjects(ctx, query, now)
}
