package message

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	// Insert persists m unless (room, sender, client message id) already
	// exists. It fills ID and reports whether a row was written.
	Insert(ctx context.Context, m *Message) (bool, error)
	ListAfter(ctx context.Context, roomID uuid.UUID, afterID int64, limit int) ([]*Message, error)
}
