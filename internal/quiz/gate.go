package quiz

import (
	"context"

	"github.com/google/uuid"
)

// Gate checks admission answers. It never writes.
type Gate struct {
	store Store
}

func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// ValidateAnswer returns nil for the correct choice, ErrWrongAnswer for any
// other value and ErrQuizNotFound when the room has no quiz.
func (g *Gate) ValidateAnswer(ctx context.Context, roomID uuid.UUID, choice int) error {
	q, err := g.store.GetQuiz(ctx, roomID)
	if err != nil {
		return err
	}

	if choice != q.CorrectChoice {
		return ErrWrongAnswer
	}

	return nil
}

// Question returns the quiz for display. CorrectChoice is never serialized.
func (g *Gate) Question(ctx context.Context, roomID uuid.UUID) (*Quiz, error) {
	return g.store.GetQuiz(ctx, roomID)
}
