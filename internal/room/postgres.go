package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rx3lixir/bookclub/internal/quiz"
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

const roomColumns = `
	id, host_id, topic, description, capacity, member_count,
	duration_minutes, round_count, status, started_at, ended_at,
	created_at, updated_at`

func scanRoom(row pgx.Row) (*Room, error) {
	r := &Room{}
	err := row.Scan(
		&r.ID,
		&r.HostID,
		&r.Topic,
		&r.Description,
		&r.Capacity,
		&r.MemberCount,
		&r.DurationMinutes,
		&r.RoundCount,
		&r.Status,
		&r.StartedAt,
		&r.EndedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return r, nil
}

// CreateRoom creates a new room
func (s *PostgresStore) CreateRoom(ctx context.Context, r *Room) error {
	query := `
		INSERT INTO rooms (` + roomColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.Exec(ctx, query,
		r.ID,
		r.HostID,
		r.Topic,
		r.Description,
		r.Capacity,
		r.MemberCount,
		r.DurationMinutes,
		r.RoundCount,
		r.Status,
		r.StartedAt,
		r.EndedAt,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

// GetRoom retrieves a room by its ID
func (s *PostgresStore) GetRoom(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	r, err := scanRoom(s.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, roomID))
	if err != nil && !errors.Is(err, ErrRoomNotFound) {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return r, err
}

func (s *PostgresStore) LockRoom(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	r, err := scanRoom(s.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1 FOR UPDATE`, roomID))
	if err != nil && !errors.Is(err, ErrRoomNotFound) {
		return nil, fmt.Errorf("failed to lock room: %w", err)
	}
	return r, err
}

// UpdateRoom writes the lifecycle fields of a room
func (s *PostgresStore) UpdateRoom(ctx context.Context, r *Room) error {
	query := `
		UPDATE rooms
		SET status = $2, member_count = $3, started_at = $4, ended_at = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := s.db.Exec(ctx, query, r.ID, r.Status, r.MemberCount, r.StartedAt, r.EndedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrRoomNotFound
	}

	return nil
}

func (s *PostgresStore) ListRooms(ctx context.Context, status Status, limit int) ([]*Room, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}

	return rooms, nil
}

// IncrementMemberCount refuses to go past capacity
func (s *PostgresStore) IncrementMemberCount(ctx context.Context, roomID uuid.UUID) error {
	result, err := s.db.Exec(ctx, `
		UPDATE rooms
		SET member_count = member_count + 1, updated_at = now()
		WHERE id = $1 AND member_count < capacity
	`, roomID)
	if err != nil {
		return fmt.Errorf("failed to increment member count: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrCapacityFull
	}

	return nil
}

// DecrementMemberCount floors the count at zero
func (s *PostgresStore) DecrementMemberCount(ctx context.Context, roomID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE rooms
		SET member_count = GREATEST(member_count - 1, 0), updated_at = now()
		WHERE id = $1
	`, roomID)
	if err != nil {
		return fmt.Errorf("failed to decrement member count: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateQuiz(ctx context.Context, q *quiz.Quiz) error {
	return quiz.NewPostgresStore(s.db).CreateQuiz(ctx, q)
}

const memberColumns = `id, room_id, user_id, display_name, role, position, status, joined_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	m := &Member{}
	err := row.Scan(
		&m.ID,
		&m.RoomID,
		&m.UserID,
		&m.DisplayName,
		&m.Role,
		&m.Position,
		&m.Status,
		&m.JoinedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) GetMember(ctx context.Context, roomID, userID uuid.UUID) (*Member, error) {
	m, err := scanMember(s.db.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM members
		WHERE room_id = $1 AND user_id = $2
	`, roomID, userID))
	if err != nil && !errors.Is(err, ErrMemberNotFound) {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, err
}

func (s *PostgresStore) ListMembers(ctx context.Context, roomID uuid.UUID) ([]*Member, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+memberColumns+`
		FROM members
		WHERE room_id = $1
		ORDER BY joined_at
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return members, nil
}

// UpsertMember inserts a member or re-activates the existing row of the
// same (room, user), keeping its id
func (s *PostgresStore) UpsertMember(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO members (` + memberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (room_id, user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    role = EXCLUDED.role,
		    position = EXCLUDED.position,
		    status = EXCLUDED.status,
		    joined_at = EXCLUDED.joined_at,
		    updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	err := s.db.QueryRow(ctx, query,
		m.ID,
		m.RoomID,
		m.UserID,
		m.DisplayName,
		m.Role,
		m.Position,
		m.Status,
		m.JoinedAt,
		m.UpdatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}

	return nil
}

func (s *PostgresStore) TransitionMember(ctx context.Context, roomID, userID uuid.UUID, from, to MemberStatus) (bool, error) {
	result, err := s.db.Exec(ctx, `
		UPDATE members
		SET status = $4, updated_at = now()
		WHERE room_id = $1 AND user_id = $2 AND status = $3
	`, roomID, userID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update member status: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (s *PostgresStore) CountMembers(ctx context.Context, roomID uuid.UUID, position Position, statuses ...MemberStatus) (int, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	var n int
	err := s.db.QueryRow(ctx, `
		SELECT count(*)
		FROM members
		WHERE room_id = $1 AND position = $2 AND status = ANY($3::text[])
	`, roomID, position, names).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}

const roundColumns = `id, room_id, round_number, started_at, ended_at, summary`

func scanRound(row pgx.Row) (*Round, error) {
	r := &Round{}
	err := row.Scan(&r.ID, &r.RoomID, &r.Number, &r.StartedAt, &r.EndedAt, &r.Summary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) CreateRound(ctx context.Context, r *Round) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rounds (id, room_id, round_number, started_at)
		VALUES ($1, $2, $3, $4)
	`, r.ID, r.RoomID, r.Number, r.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create round %d: %w", r.Number, err)
	}
	return nil
}

// GetOpenRound returns the round with no end time
func (s *PostgresStore) GetOpenRound(ctx context.Context, roomID uuid.UUID) (*Round, error) {
	r, err := scanRound(s.db.QueryRow(ctx, `
		SELECT `+roundColumns+`
		FROM rounds
		WHERE room_id = $1 AND ended_at IS NULL
	`, roomID))
	if err != nil && !errors.Is(err, ErrRoundNotFound) {
		return nil, fmt.Errorf("failed to get open round: %w", err)
	}
	return r, err
}

func (s *PostgresStore) CloseRound(ctx context.Context, roundID uuid.UUID, endedAt time.Time) error {
	result, err := s.db.Exec(ctx, `
		UPDATE rounds SET ended_at = $2
		WHERE id = $1 AND ended_at IS NULL
	`, roundID, endedAt)
	if err != nil {
		return fmt.Errorf("failed to close round: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrRoundNotFound
	}

	return nil
}

func (s *PostgresStore) ListRounds(ctx context.Context, roomID uuid.UUID) ([]*Round, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+roundColumns+`
		FROM rounds
		WHERE room_id = $1
		ORDER BY round_number
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rounds: %w", err)
	}

	return rounds, nil
}

// OpenVote creates the post-chat vote with a snapshot of the member count
func (s *PostgresStore) OpenVote(ctx context.Context, roomID uuid.UUID, openedAt time.Time, totalMembers int) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO votes (room_id, opened_at, total_member_count)
		VALUES ($1, $2, $3)
	`, roomID, openedAt, totalMembers)
	if err != nil {
		return fmt.Errorf("failed to open vote: %w", err)
	}
	return nil
}
