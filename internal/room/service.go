package room

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/internal/quiz"
	"github.com/rx3lixir/bookclub/internal/summary"
)

type AnswerChecker interface {
	ValidateAnswer(ctx context.Context, roomID uuid.UUID, choice int) error
}

// Broadcaster pushes events to a room's live subscribers
type Broadcaster interface {
	BroadcastToRoom(roomID uuid.UUID, event string, data any)
	// CloseRoom disconnects every subscriber and forgets their sessions
	CloseRoom(roomID uuid.UUID)
}

type SummaryDispatcher interface {
	Submit(job summary.Job) bool
}

type Limits struct {
	DefaultDurationMinutes int
	MaxDurationMinutes     int
	DefaultRoundCount      int
	MaxRoundCount          int
	VoteWindow             time.Duration
}

type Service struct {
	store     Store
	quiz      AnswerChecker
	hub       Broadcaster
	summaries SummaryDispatcher
	limits    Limits
	now       func() time.Time
	log       *slog.Logger
}

func NewService(
	store Store,
	quiz AnswerChecker,
	hub Broadcaster,
	summaries SummaryDispatcher,
	limits Limits,
	log *slog.Logger,
) *Service {
	return &Service{
		store:     store,
		quiz:      quiz,
		hub:       hub,
		summaries: summaries,
		limits:    limits,
		now:       time.Now,
		log:       log,
	}
}

// Create opens a WAITING room with its quiz. The host gets a reserved
// member row that only counts once the host joins.
func (s *Service) Create(ctx context.Context, hostID uuid.UUID, hostName string, req CreateRoomRequest) (*RoomDetails, error) {
	topic := strings.TrimSpace(req.Topic)
	switch {
	case topic == "":
		return nil, invalidRoom("topic is required")
	case utf8.RuneCountInString(topic) > MaxTopicLen:
		return nil, invalidRoom("topic is too long")
	case utf8.RuneCountInString(req.Description) > MaxDescriptionLen:
		return nil, invalidRoom("description is too long")
	case req.Capacity < MinCapacity || req.Capacity > MaxCapacity:
		return nil, invalidRoom("capacity must be between 2 and 10")
	case req.DurationMinutes < 0 || req.RoundCount < 0:
		return nil, invalidRoom("duration and round count cannot be negative")
	case !req.Position.Valid():
		return nil, ErrInvalidPosition
	}

	now := s.now()
	r := &Room{
		ID:              uuid.New(),
		HostID:          hostID,
		Topic:           topic,
		Description:     req.Description,
		Capacity:        req.Capacity,
		MemberCount:     0,
		DurationMinutes: clamp(req.DurationMinutes, s.limits.DefaultDurationMinutes, s.limits.MaxDurationMinutes),
		RoundCount:      clamp(req.RoundCount, s.limits.DefaultRoundCount, s.limits.MaxRoundCount),
		Status:          StatusWaiting,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	q := &quiz.Quiz{
		RoomID:        r.ID,
		Question:      strings.TrimSpace(req.Quiz.Question),
		CorrectChoice: req.Quiz.CorrectChoice,
		Choices:       req.Quiz.Choices,
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	host := &Member{
		ID:          uuid.New(),
		RoomID:      r.ID,
		UserID:      hostID,
		DisplayName: displayName(hostName),
		Role:        RoleHost,
		Position:    req.Position,
		Status:      MemberWaiting,
		JoinedAt:    now,
		UpdatedAt:   now,
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		if err := tx.CreateRoom(ctx, r); err != nil {
			return err
		}
		if err := tx.CreateQuiz(ctx, q); err != nil {
			return err
		}
		return tx.UpsertMember(ctx, host)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("room created",
		"room_id", r.ID,
		"host_id", hostID,
		"capacity", r.Capacity,
		"duration_minutes", r.DurationMinutes,
		"round_count", r.RoundCount)

	return &RoomDetails{Room: r, Members: []*Member{host}, Rounds: []*Round{}}, nil
}

// Join admits a user that passed the quiz. The host activates its
// reservation without answering and keeps the position chosen at creation.
func (s *Service) Join(ctx context.Context, roomID, userID uuid.UUID, name string, req JoinRoomRequest) (*Member, error) {
	existing, err := s.store.GetMember(ctx, roomID, userID)
	if err != nil && !errors.Is(err, ErrMemberNotFound) {
		return nil, err
	}
	isHost := existing != nil && existing.Role == RoleHost

	if !isHost {
		if !req.Position.Valid() {
			return nil, ErrInvalidPosition
		}
		if err := s.quiz.ValidateAnswer(ctx, roomID, req.Answer); err != nil {
			return nil, err
		}
	}

	var (
		member  *Member
		changed bool
	)
	err = s.store.InTx(ctx, func(tx Store) error {
		r, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if r.Status != StatusWaiting {
			return ErrNotWaiting
		}

		m, err := tx.GetMember(ctx, roomID, userID)
		if err != nil && !errors.Is(err, ErrMemberNotFound) {
			return err
		}
		if m != nil && m.Active() {
			member = m
			return nil
		}

		if r.MemberCount >= r.Capacity {
			return ErrCapacityFull
		}

		now := s.now()
		if m == nil {
			m = &Member{
				ID:       uuid.New(),
				RoomID:   roomID,
				UserID:   userID,
				Role:     RoleParticipant,
				Position: req.Position,
			}
		} else if m.Role != RoleHost {
			m.Position = req.Position
		}

		taken, err := tx.CountMembers(ctx, roomID, m.Position, MemberJoined, MemberDisconnected)
		if err != nil {
			return err
		}
		if taken >= r.PositionQuota() {
			return ErrPositionFull
		}

		m.DisplayName = displayName(name)
		m.Status = MemberJoined
		m.JoinedAt = now
		m.UpdatedAt = now

		if err := tx.UpsertMember(ctx, m); err != nil {
			return err
		}
		if err := tx.IncrementMemberCount(ctx, roomID); err != nil {
			return err
		}

		member = m
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.Info("member joined room",
			"room_id", roomID,
			"user_id", userID,
			"role", member.Role,
			"position", member.Position)
		s.hub.BroadcastToRoom(roomID, EventMemberJoined, member)
	}

	return member, nil
}

const maxLeaveAttempts = 3

// Leave removes a participant before or during the chat
func (s *Service) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	err := s.store.InTx(ctx, func(tx Store) error {
		r, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if !r.Status.Open() {
			return ErrRoomClosed
		}

		// Presence updates do not take the room lock, so the status read
		// here can be stale by the time the row is updated
		for range maxLeaveAttempts {
			m, err := tx.GetMember(ctx, roomID, userID)
			if err != nil {
				return err
			}
			if !m.Active() {
				return ErrMemberNotFound
			}
			if m.Role == RoleHost {
				return ErrHostCannotLeave
			}

			moved, err := tx.TransitionMember(ctx, roomID, userID, m.Status, MemberLeft)
			if err != nil {
				return err
			}
			if moved {
				return tx.DecrementMemberCount(ctx, roomID)
			}
		}
		return ErrMemberBusy
	})
	if err != nil {
		return err
	}

	s.log.Info("member left room", "room_id", roomID, "user_id", userID)
	s.hub.BroadcastToRoom(roomID, EventMemberLeft, map[string]any{
		"room_id": roomID,
		"user_id": userID,
	})

	return nil
}

// Cancel abandons a room that never started
func (s *Service) Cancel(ctx context.Context, roomID, userID uuid.UUID) error {
	err := s.store.InTx(ctx, func(tx Store) error {
		r, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if r.HostID != userID {
			return ErrNotHost
		}
		if r.Status != StatusWaiting {
			return ErrNotWaiting
		}

		r.Status = StatusCancelled
		r.MemberCount = 0
		r.UpdatedAt = s.now()
		return tx.UpdateRoom(ctx, r)
	})
	if err != nil {
		return err
	}

	s.log.Info("room cancelled", "room_id", roomID, "host_id", userID)
	s.hub.BroadcastToRoom(roomID, EventRoomCancelled, map[string]any{"room_id": roomID})
	s.hub.CloseRoom(roomID)

	return nil
}

func (s *Service) Get(ctx context.Context, roomID uuid.UUID) (*RoomDetails, error) {
	r, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	members, err := s.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}

	rounds, err := s.store.ListRounds(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return &RoomDetails{Room: r, Members: members, Rounds: rounds}, nil
}

func (s *Service) List(ctx context.Context, status Status, limit int) ([]*Room, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListRooms(ctx, status, limit)
}

// MarkConnected is called when a member subscribes over the websocket.
// A DISCONNECTED member comes back as JOINED.
func (s *Service) MarkConnected(ctx context.Context, roomID, userID uuid.UUID) error {
	r, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !r.Status.Open() {
		return ErrRoomClosed
	}

	m, err := s.store.GetMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !m.Active() {
		return ErrMemberNotFound
	}

	if m.Status == MemberDisconnected {
		if _, err := s.store.TransitionMember(ctx, roomID, userID, MemberDisconnected, MemberJoined); err != nil {
			return err
		}
		s.log.Debug("member reconnected", "room_id", roomID, "user_id", userID)
	}

	return nil
}

// MarkDisconnected is called once the last session of a member closes
func (s *Service) MarkDisconnected(ctx context.Context, roomID, userID uuid.UUID) error {
	moved, err := s.store.TransitionMember(ctx, roomID, userID, MemberJoined, MemberDisconnected)
	if err != nil {
		return err
	}
	if moved {
		s.log.Debug("member disconnected", "room_id", roomID, "user_id", userID)
	}
	return nil
}

// AdmitSender checks whether userID may post right now and returns the
// open round the message belongs to
func (s *Service) AdmitSender(ctx context.Context, roomID, userID uuid.UUID) (uuid.UUID, error) {
	r, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return uuid.Nil, err
	}
	if r.Status != StatusChatting {
		return uuid.Nil, ErrNotChatting
	}

	m, err := s.store.GetMember(ctx, roomID, userID)
	if err != nil {
		return uuid.Nil, err
	}
	if m.Status != MemberJoined {
		return uuid.Nil, ErrMemberNotFound
	}

	round, err := s.store.GetOpenRound(ctx, roomID)
	if err != nil {
		return uuid.Nil, err
	}

	return round.ID, nil
}

func clamp(v, def, max int) int {
	if v == 0 {
		v = def
	}
	if max > 0 && v > max {
		v = max
	}
	return v
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		name = string([]rune(name)[:MaxDisplayNameLen])
	}
	return name
}
