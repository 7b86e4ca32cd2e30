package vote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rx3lixir/bookclub/internal/storage/postgres"
)

type PostgresStore struct {
	db postgres.TxBeginner
}

func NewPostgresStore(db postgres.TxBeginner) *PostgresStore {
	return &PostgresStore{db}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&PostgresStore{db: tx})
	})
}

func (s *PostgresStore) LockVote(ctx context.Context, roomID uuid.UUID) (*Vote, error) {
	query := `
		SELECT room_id, opened_at, closed_at, total_member_count, agree_count, disagree_count
		FROM votes
		WHERE room_id = $1
		FOR UPDATE
	`

	v := &Vote{}
	err := s.db.QueryRow(ctx, query, roomID).Scan(
		&v.RoomID,
		&v.OpenedAt,
		&v.ClosedAt,
		&v.TotalMemberCount,
		&v.AgreeCount,
		&v.DisagreeCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}

	return v, nil
}

func (s *PostgresStore) CloseVote(ctx context.Context, roomID uuid.UUID, closedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE votes SET closed_at = $2
		WHERE room_id = $1 AND closed_at IS NULL
	`, roomID, closedAt)
	if err != nil {
		return fmt.Errorf("failed to close vote: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsActiveMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM members
			WHERE room_id = $1 AND user_id = $2 AND status IN ('JOINED', 'DISCONNECTED')
		)
	`, roomID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) GetCast(ctx context.Context, roomID, userID uuid.UUID) (*Choice, error) {
	var c Choice
	err := s.db.QueryRow(ctx, `
		SELECT choice FROM vote_casts WHERE room_id = $1 AND user_id = $2
	`, roomID, userID).Scan(&c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vote cast: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) InsertCast(ctx context.Context, roomID, userID uuid.UUID, choice Choice, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO vote_casts (room_id, user_id, choice, created_at)
		VALUES ($1, $2, $3, $4)
	`, roomID, userID, choice, at)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return ErrAlreadyCast
		}
		return fmt.Errorf("failed to insert vote cast: %w", err)
	}
	return nil
}

func (s *PostgresStore) IncrementCount(ctx context.Context, roomID uuid.UUID, choice Choice) error {
	column := "agree_count"
	if choice == ChoiceDisagree {
		column = "disagree_count"
	}

	_, err := s.db.Exec(ctx, fmt.Sprintf(`
		UPDATE votes SET %[1]s = %[1]s + 1 WHERE room_id = $1
	`, column), roomID)
	if err != nil {
		return fmt.Errorf("failed to increment vote count: %w", err)
	}
	return nil
}
