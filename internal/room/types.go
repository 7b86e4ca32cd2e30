package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/internal/quiz"
	"github.com/rx3lixir/bookclub/internal/summary"
)

type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusChatting  Status = "CHATTING"
	StatusEnded     Status = "ENDED"
	StatusCancelled Status = "CANCELLED"
)

// Open reports whether members can still connect to the room
func (s Status) Open() bool {
	return s == StatusWaiting || s == StatusChatting
}

type MemberStatus string

const (
	MemberWaiting      MemberStatus = "WAITING"
	MemberJoined       MemberStatus = "JOINED"
	MemberDisconnected MemberStatus = "DISCONNECTED"
	MemberLeft         MemberStatus = "LEFT"
)

type Role string

const (
	RoleHost        Role = "HOST"
	RoleParticipant Role = "PARTICIPANT"
)

type Position string

const (
	PositionAgree    Position = "AGREE"
	PositionDisagree Position = "DISAGREE"
)

func (p Position) Valid() bool {
	return p == PositionAgree || p == PositionDisagree
}

func (p Position) Opposite() Position {
	if p == PositionAgree {
		return PositionDisagree
	}
	return PositionAgree
}

const (
	MinCapacity       = 2
	MaxCapacity       = 10
	MaxTopicLen       = 100
	MaxDescriptionLen = 1000
	MaxDisplayNameLen = 64
)

type Room struct {
	ID              uuid.UUID  `json:"id"`
	HostID          uuid.UUID  `json:"host_id"`
	Topic           string     `json:"topic"`
	Description     string     `json:"description"`
	Capacity        int        `json:"capacity"`
	MemberCount     int        `json:"member_count"`
	DurationMinutes int        `json:"duration_minutes"`
	RoundCount      int        `json:"round_count"`
	Status          Status     `json:"status"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RoundDuration is the soft length of each round
func (r *Room) RoundDuration() time.Duration {
	if r.RoundCount <= 0 {
		return 0
	}
	return time.Duration(r.DurationMinutes) * time.Minute / time.Duration(r.RoundCount)
}

// PositionQuota is the most members one side may hold
func (r *Room) PositionQuota() int {
	return (r.Capacity + 1) / 2
}

type Member struct {
	ID          uuid.UUID    `json:"id"`
	RoomID      uuid.UUID    `json:"room_id"`
	UserID      uuid.UUID    `json:"user_id"`
	DisplayName string       `json:"display_name"`
	Role        Role         `json:"role"`
	Position    Position     `json:"position"`
	Status      MemberStatus `json:"status"`
	JoinedAt    time.Time    `json:"joined_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Active members are counted in the room's member count
func (m *Member) Active() bool {
	return m.Status == MemberJoined || m.Status == MemberDisconnected
}

type Round struct {
	ID        uuid.UUID        `json:"id"`
	RoomID    uuid.UUID        `json:"room_id"`
	Number    int              `json:"round_number"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   *time.Time       `json:"ended_at,omitempty"`
	Summary   *summary.Summary `json:"summary,omitempty"`
}

type CreateRoomRequest struct {
	Topic           string                 `json:"topic"`
	Description     string                 `json:"description"`
	Capacity        int                    `json:"capacity"`
	DurationMinutes int                    `json:"duration_minutes"`
	RoundCount      int                    `json:"round_count"`
	Position        Position               `json:"position"`
	Quiz            quiz.CreateQuizRequest `json:"quiz"`
}

type JoinRoomRequest struct {
	Answer   int      `json:"answer"`
	Position Position `json:"position"`
}

type RoomDetails struct {
	Room    *Room     `json:"room"`
	Members []*Member `json:"members"`
	Rounds  []*Round  `json:"rounds"`
}

type ListRoomsResponse struct {
	Rooms []*Room `json:"rooms"`
	Count int     `json:"count"`
}
