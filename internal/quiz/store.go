package quiz

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	CreateQuiz(ctx context.Context, q *Quiz) error
	GetQuiz(ctx context.Context, roomID uuid.UUID) (*Quiz, error)
}
