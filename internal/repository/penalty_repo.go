package repository

import (
	"context"

	"skillswap/pkg/db"
)

// PenaltyLedger records which missed deadlines were already punished.
type PenaltyLedger struct {
	db db.DBTX
}

func NewPenaltyLedger(conn db.DBTX) *PenaltyLedger {
	return &PenaltyLedger{db: conn}
}

func (r *PenaltyLedger) Record(ctx context.Context, projectID, userID int64) (bool, error) {
	query := `
		INSERT INTO penalty_ledger (project_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (project_id, user_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, projectID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
