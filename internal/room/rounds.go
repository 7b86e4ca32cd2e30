package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/internal/summary"
)

// Start moves a WAITING room to CHATTING and opens round 1
func (s *Service) Start(ctx context.Context, roomID, userID uuid.UUID) (*Round, error) {
	var (
		r     *Room
		round *Round
	)
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		r, err = tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if r.HostID != userID {
			return ErrNotHost
		}
		if r.Status != StatusWaiting {
			return ErrNotWaiting
		}

		host, err := tx.GetMember(ctx, roomID, userID)
		if err != nil {
			return err
		}

		opponents, err := tx.CountMembers(ctx, roomID, host.Position.Opposite(), MemberJoined)
		if err != nil {
			return err
		}
		if opponents == 0 {
			return ErrInsufficientMembers
		}

		now := s.now()
		r.Status = StatusChatting
		r.StartedAt = &now
		r.UpdatedAt = now
		if err := tx.UpdateRoom(ctx, r); err != nil {
			return err
		}

		round = &Round{
			ID:        uuid.New(),
			RoomID:    roomID,
			Number:    1,
			StartedAt: now,
		}
		return tx.CreateRound(ctx, round)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("room started",
		"room_id", roomID,
		"member_count", r.MemberCount,
		"round_count", r.RoundCount)

	s.hub.BroadcastToRoom(roomID, EventRoomStarted, r)
	s.hub.BroadcastToRoom(roomID, EventRoundStarted, newRoundEvent(r, round))

	return round, nil
}

// AdvanceRound closes the open round and opens the next one. The closed
// round is handed to the summary dispatcher after commit.
func (s *Service) AdvanceRound(ctx context.Context, roomID, userID uuid.UUID) (*Round, error) {
	var (
		r      *Room
		closed *Round
		next   *Round
	)
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		r, closed, err = s.lockOpenRound(ctx, tx, roomID, userID)
		if err != nil {
			return err
		}
		if closed.Number >= r.RoundCount {
			return ErrMaxRoundReached
		}

		now := s.now()
		if err := tx.CloseRound(ctx, closed.ID, now); err != nil {
			return err
		}
		closed.EndedAt = &now

		next = &Round{
			ID:        uuid.New(),
			RoomID:    roomID,
			Number:    closed.Number + 1,
			StartedAt: now,
		}
		return tx.CreateRound(ctx, next)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("round advanced",
		"room_id", roomID,
		"closed_round", closed.Number,
		"round_number", next.Number)

	s.dispatchSummary(r, closed)
	s.hub.BroadcastToRoom(roomID, EventRoundStarted, newRoundEvent(r, next))

	return next, nil
}

// End closes the last round, opens the vote and ends the room
func (s *Service) End(ctx context.Context, roomID, userID uuid.UUID) (*Room, error) {
	var (
		r    *Room
		last *Round
	)
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		r, last, err = s.lockOpenRound(ctx, tx, roomID, userID)
		if err != nil {
			return err
		}
		if last.Number != r.RoundCount {
			return ErrNotLastRound
		}

		now := s.now()
		if err := tx.CloseRound(ctx, last.ID, now); err != nil {
			return err
		}
		last.EndedAt = &now

		if err := tx.OpenVote(ctx, roomID, now, r.MemberCount); err != nil {
			return err
		}

		r.Status = StatusEnded
		r.EndedAt = &now
		r.UpdatedAt = now
		return tx.UpdateRoom(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("room ended",
		"room_id", roomID,
		"rounds", last.Number,
		"member_count", r.MemberCount)

	s.dispatchSummary(r, last)
	s.hub.BroadcastToRoom(roomID, EventRoomEnded, RoomEndedEvent{
		RoomID:       roomID,
		EndedAt:      *r.EndedAt,
		VoteClosesAt: r.EndedAt.Add(s.limits.VoteWindow),
	})
	s.hub.CloseRoom(roomID)

	return r, nil
}

func (s *Service) lockOpenRound(ctx context.Context, tx Store, roomID, userID uuid.UUID) (*Room, *Round, error) {
	r, err := tx.LockRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if r.HostID != userID {
		return nil, nil, ErrNotHost
	}
	if r.Status != StatusChatting {
		return nil, nil, ErrNotChatting
	}

	round, err := tx.GetOpenRound(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}

	return r, round, nil
}

func (s *Service) dispatchSummary(r *Room, round *Round) {
	job := summary.Job{
		RoomID:      r.ID,
		RoundID:     round.ID,
		Topic:       r.Topic,
		RoundNumber: round.Number,
	}
	if !s.summaries.Submit(job) {
		s.log.Warn("summary job dropped",
			"room_id", r.ID,
			"round_id", round.ID,
			"round_number", round.Number)
	}
}

// RoundDeadline is the advisory end of a round
func RoundDeadline(r *Room, round *Round) time.Time {
	return round.StartedAt.Add(r.RoundDuration())
}
