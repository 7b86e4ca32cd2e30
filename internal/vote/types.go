package vote

import (
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/pkg/apperr"
)

type Choice string

const (
	ChoiceAgree    Choice = "AGREE"
	ChoiceDisagree Choice = "DISAGREE"
)

func (c Choice) Valid() bool {
	return c == ChoiceAgree || c == ChoiceDisagree
}

const DefaultWindow = time.Minute

var (
	ErrVoteNotFound   = apperr.NotFound("VOTE_NOT_FOUND", "room has no vote")
	ErrMemberNotFound = apperr.NotFound("MEMBER_NOT_FOUND", "member not found")
	ErrVoteClosed     = apperr.Conflict("VOTE_ALREADY_CLOSED", "vote is closed")
	ErrAlreadyCast    = apperr.Conflict("VOTE_ALREADY_CAST", "vote already cast")
	ErrInvalidChoice  = apperr.Invalid("INVALID_CHOICE", "choice must be AGREE or DISAGREE")
)

// Vote is the post-chat poll of a room. ClosedAt only ever moves from nil
// to a timestamp.
type Vote struct {
	RoomID           uuid.UUID
	OpenedAt         time.Time
	ClosedAt         *time.Time
	TotalMemberCount int
	AgreeCount       int
	DisagreeCount    int
}

type CastRequest struct {
	Choice Choice `json:"choice"`
}

type Result struct {
	RoomID           uuid.UUID  `json:"room_id"`
	AgreeCount       int        `json:"agree_count"`
	DisagreeCount    int        `json:"disagree_count"`
	TotalMemberCount int        `json:"total_member_count"`
	Closed           bool       `json:"closed"`
	OpenedAt         time.Time  `json:"opened_at"`
	ClosesAt         time.Time  `json:"closes_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	MyChoice         *Choice    `json:"my_choice"`
}
