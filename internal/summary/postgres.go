package summary

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/internal/storage/postgres"
)

type PostgresStore struct {
	db postgres.DBTX
}

func NewPostgresStore(db postgres.DBTX) *PostgresStore {
	return &PostgresStore{db}
}

func (s *PostgresStore) RoundTextMessages(ctx context.Context, roundID uuid.UUID) ([]SourceMessage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT sender_id, content
		FROM messages
		WHERE round_id = $1 AND type = 'TEXT'
		ORDER BY id DESC
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query round messages: %w", err)
	}
	defer rows.Close()

	var msgs []SourceMessage
	for rows.Next() {
		var m SourceMessage
		if err := rows.Scan(&m.SenderID, &m.Content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return msgs, nil
}

// DisplayNames resolves every member of the room in one query
func (s *PostgresStore) DisplayNames(ctx context.Context, roomID uuid.UUID) (map[uuid.UUID]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, display_name
		FROM members
		WHERE room_id = $1
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	names := make(map[uuid.UUID]string)
	for rows.Next() {
		var (
			id   uuid.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		names[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return names, nil
}

// SaveSummary writes the summary regardless of whether the round was closed
// in the meantime
func (s *PostgresStore) SaveSummary(ctx context.Context, roundID uuid.UUID, sum *Summary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	tag, err := s.db.Exec(ctx, `UPDATE rounds SET summary = $2 WHERE id = $1`, roundID, payload)
	if err != nil {
		return fmt.Errorf("failed to update round summary: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("round %s not found", roundID)
	}

	return nil
}
