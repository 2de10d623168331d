package repository

import (
	"context"

	"skillswap/internal/model"
	"skillswap/pkg/db"
)

type ChatRepository struct {
	db db.DBTX
}

func NewChatRepository(conn db.DBTX) *ChatRepository {
	return &ChatRepository{db: conn}
}

// Insert appends a chat row. Replays of the same message are ignored.
func (r *ChatRepository) Insert(ctx context.Context, m *model.ChatMessage) (bool, error) {
	query := `
		INSERT INTO chat_history (room_id, offer_id, sender_id, message, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, sender_id, offer_id, timestamp) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, m.RoomID, m.OfferID, m.SenderID, m.Message, m.Timestamp)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByRoom returns the newest limit messages, oldest first.
func (r *ChatRepository) ListByRoom(ctx context.Context, room string, limit int) ([]model.ChatMessage, error) {
	query := `
		SELECT id, room_id, offer_id, sender_id, message, timestamp
		FROM (
			SELECT id, room_id, offer_id, sender_id, message, timestamp
			FROM chat_history
			WHERE room_id = $1
			ORDER BY timestamp DESC
			LIMIT $2
		) latest
		ORDER BY timestamp ASC
	`
	rows, err := r.db.Query(ctx, query, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.OfferID, &m.SenderID, &m.Message, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
