package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rx3lixir/bookclub/internal/storage/postgres"
)

type PostgresStore struct {
	db postgres.DBTX
}

func NewPostgresStore(db postgres.DBTX) *PostgresStore {
	return &PostgresStore{db}
}

func (s *PostgresStore) Insert(ctx context.Context, m *Message) (bool, error) {
	query := `
		INSERT INTO messages (room_id, round_id, sender_id, client_message_id, type, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_id, sender_id, client_message_id) DO NOTHING
		RETURNING id
	`

	err := s.db.QueryRow(ctx, query,
		m.RoomID,
		m.RoundID,
		m.SenderID,
		m.ClientMessageID,
		m.Type,
		m.Content,
		m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		if ctx.Err() != nil {
			return false, fmt.Errorf("operation cancelled: %w", ctx.Err())
		}
		return false, fmt.Errorf("failed to insert message: %w", err)
	}

	return true, nil
}

func (s *PostgresStore) ListAfter(ctx context.Context, roomID uuid.UUID, afterID int64, limit int) ([]*Message, error) {
	query := `
		SELECT id, room_id, round_id, sender_id, client_message_id, type, content, created_at
		FROM messages
		WHERE room_id = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`

	rows, err := s.db.Query(ctx, query, roomID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(
			&m.ID,
			&m.RoomID,
			&m.RoundID,
			&m.SenderID,
			&m.ClientMessageID,
			&m.Type,
			&m.Content,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}
