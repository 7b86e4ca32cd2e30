package summary

import (
	"context"

	"github.com/google/uuid"
)

// DefaultBudget caps the transcript handed to the summarizer, in characters
const DefaultBudget = 2400

// Job identifies a closed round to summarize. It is passed by value and
// never mutated after submission.
type Job struct {
	RoomID      uuid.UUID
	RoundID     uuid.UUID
	Topic       string
	RoundNumber int
}

// Summary is the structured result stored on the round row
type Summary struct {
	Pro              []string `json:"pro"`
	Con              []string `json:"con"`
	MainIssues       []string `json:"main_issues"`
	UnresolvedIssues []string `json:"unresolved_issues"`
}

// SourceMessage is a persisted TEXT message of a round
type SourceMessage struct {
	SenderID uuid.UUID
	Content  string
}

// Line is one transcript entry sent to the summarizer
type Line struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type Request struct {
	Topic       string
	RoundNumber int
	Lines       []Line
}

// Summarizer is the external AI call
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (*Summary, error)
}

type Store interface {
	// RoundTextMessages returns the TEXT messages of a round, newest first
	RoundTextMessages(ctx context.Context, roundID uuid.UUID) ([]SourceMessage, error)
	DisplayNames(ctx context.Context, roomID uuid.UUID) (map[uuid.UUID]string, error)
	SaveSummary(ctx context.Context, roundID uuid.UUID, s *Summary) error
}
