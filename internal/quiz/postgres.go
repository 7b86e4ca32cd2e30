package quiz

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

// NewPostgresStore accepts a pool or a transaction
func NewPostgresStore(db postgres.DBTX) *PostgresStore {
	return &PostgresStore{db}
}

// CreateQuiz inserts the quiz and its choices. Callers creating a room
// pass a transaction so the quiz lands together with the room row.
func (s *PostgresStore) CreateQuiz(ctx context.Context, q *Quiz) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO quizzes (room_id, question, correct_choice)
		VALUES ($1, $2, $3)
	`, q.RoomID, q.Question, q.CorrectChoice)
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	for _, c := range q.Choices {
		_, err := s.db.Exec(ctx, `
			INSERT INTO quiz_choices (room_id, number, text)
			VALUES ($1, $2, $3)
		`, q.RoomID, c.Number, c.Text)
		if err != nil {
			return fmt.Errorf("failed to create quiz choice %d: %w", c.Number, err)
		}
	}

	return nil
}

// GetQuiz loads a quiz with its choices ordered by number
func (s *PostgresStore) GetQuiz(ctx context.Context, roomID uuid.UUID) (*Quiz, error) {
	q := &Quiz{RoomID: roomID}

	err := s.db.QueryRow(ctx, `
		SELECT question, correct_choice
		FROM quizzes
		WHERE room_id = $1
	`, roomID).Scan(&q.Question, &q.CorrectChoice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT number, text
		FROM quiz_choices
		WHERE room_id = $1
		ORDER BY number
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz choices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Choice
		if err := rows.Scan(&c.Number, &c.Text); err != nil {
			return nil, fmt.Errorf("failed to scan quiz choice: %w", err)
		}
		q.Choices = append(q.Choices, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quiz choices: %w", err)
	}

	return q, nil
}
