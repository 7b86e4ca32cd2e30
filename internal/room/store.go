package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/internal/quiz"
)

type Store interface {
	// InTx runs fn against a store bound to one transaction
	InTx(ctx context.Context, fn func(tx Store) error) error

	CreateRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, roomID uuid.UUID) (*Room, error)
	// LockRoom reads the room row with a row lock held until commit
	LockRoom(ctx context.Context, roomID uuid.UUID) (*Room, error)
	UpdateRoom(ctx context.Context, room *Room) error
	ListRooms(ctx context.Context, status Status, limit int) ([]*Room, error)
	IncrementMemberCount(ctx context.Context, roomID uuid.UUID) error
	DecrementMemberCount(ctx context.Context, roomID uuid.UUID) error

	CreateQuiz(ctx context.Context, q *quiz.Quiz) error

	GetMember(ctx context.Context, roomID, userID uuid.UUID) (*Member, error)
	ListMembers(ctx context.Context, roomID uuid.UUID) ([]*Member, error)
	UpsertMember(ctx context.Context, member *Member) error
	// TransitionMember moves a member from one status to another and
	// reports whether the member was in the from status
	TransitionMember(ctx context.Context, roomID, userID uuid.UUID, from, to MemberStatus) (bool, error)
	CountMembers(ctx context.Context, roomID uuid.UUID, position Position, statuses ...MemberStatus) (int, error)

	CreateRound(ctx context.Context, round *Round) error
	GetOpenRound(ctx context.Context, roomID uuid.UUID) (*Round, error)
	CloseRound(ctx context.Context, roundID uuid.UUID, endedAt time.Time) error
	ListRounds(ctx context.Context, roomID uuid.UUID) ([]*Round, error)

	OpenVote(ctx context.Context, roomID uuid.UUID, openedAt time.Time, totalMembers int) error
}
