package quiz

import (
	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/pkg/apperr"
)

const ChoiceCount = 4

var (
	ErrQuizNotFound = apperr.NotFound("QUIZ_NOT_FOUND", "quiz not found")
	ErrWrongAnswer  = apperr.Invalid("WRONG_ANSWER", "wrong answer")
	ErrInvalidQuiz  = apperr.Invalid("INVALID_QUIZ", "quiz must have four choices numbered 1 to 4")
)

// Quiz is the single admission question of a room
type Quiz struct {
	RoomID        uuid.UUID `json:"room_id"`
	Question      string    `json:"question"`
	CorrectChoice int       `json:"-"`
	Choices       []Choice  `json:"choices"`
}

type Choice struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type CreateQuizRequest struct {
	Question      string   `json:"question"`
	CorrectChoice int      `json:"correct_choice"`
	Choices       []Choice `json:"choices"`
}

type AnswerRequest struct {
	Choice int `json:"choice"`
}

type AnswerResponse struct {
	Correct bool `json:"correct"`
}

// Validate checks the quiz shape: exactly four choices with unique
// numbers spanning 1..4, and a correct choice among them.
func (q *Quiz) Validate() error {
	if q.Question == "" || len(q.Choices) != ChoiceCount {
		return ErrInvalidQuiz
	}

	var seen [ChoiceCount + 1]bool
	for _, c := range q.Choices {
		if c.Number < 1 || c.Number > ChoiceCount || seen[c.Number] || c.Text == "" {
			return ErrInvalidQuiz
		}
		seen[c.Number] = true
	}

	if q.CorrectChoice < 1 || q.CorrectChoice > ChoiceCount {
		return ErrInvalidQuiz
	}

	return nil
}
