package room

import (
	"time"

	"github.com/google/uuid"
)

// Events broadcast to room subscribers
const (
	EventMemberJoined  = "member_joined"
	EventMemberLeft    = "member_left"
	EventRoomStarted   = "room_started"
	EventRoundStarted  = "round_started"
	EventRoomEnded     = "room_ended"
	EventRoomCancelled = "room_cancelled"
)

type RoundEvent struct {
	RoomID      uuid.UUID `json:"room_id"`
	RoundID     uuid.UUID `json:"round_id"`
	RoundNumber int       `json:"round_number"`
	RoundCount  int       `json:"round_count"`
	StartedAt   time.Time `json:"started_at"`
	// EndsAt is advisory, rounds are never closed by a timer
	EndsAt time.Time `json:"ends_at"`
}

type RoomEndedEvent struct {
	RoomID       uuid.UUID `json:"room_id"`
	EndedAt      time.Time `json:"ended_at"`
	VoteClosesAt time.Time `json:"vote_closes_at"`
}

func newRoundEvent(r *Room, round *Round) RoundEvent {
	return RoundEvent{
		RoomID:      r.ID,
		RoundID:     round.ID,
		RoundNumber: round.Number,
		RoundCount:  r.RoundCount,
		StartedAt:   round.StartedAt,
		EndsAt:      RoundDeadline(r, round),
	}
}
