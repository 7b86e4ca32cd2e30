package vote

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	InTx(ctx context.Context, fn func(tx Store) error) error

	// LockVote reads the vote row with a row lock held until commit
	LockVote(ctx context.Context, roomID uuid.UUID) (*Vote, error)
	// CloseVote sets closed_at unless it is already set
	CloseVote(ctx context.Context, roomID uuid.UUID, closedAt time.Time) error
	// IsActiveMember reports whether the user holds a seat in the room
	IsActiveMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	// GetCast returns the user's choice or nil when the user has not voted
	GetCast(ctx context.Context, roomID, userID uuid.UUID) (*Choice, error)
	InsertCast(ctx context.Context, roomID, userID uuid.UUID, choice Choice, at time.Time) error
	IncrementCount(ctx context.Context, roomID uuid.UUID, choice Choice) error
}
