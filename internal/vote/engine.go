package vote

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Engine runs the post-chat poll. Expiry is lazy: every call closes an
// overdue vote before doing anything else, and that close is committed
// even when the call itself is rejected.
type Engine struct {
	store  Store
	window time.Duration
	now    func() time.Time
	log    *slog.Logger
}

func NewEngine(store Store, window time.Duration, log *slog.Logger) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{
		store:  store,
		window: window,
		now:    time.Now,
		log:    log,
	}
}

func (e *Engine) Cast(ctx context.Context, roomID, userID uuid.UUID, choice Choice) error {
	if !choice.Valid() {
		return ErrInvalidChoice
	}

	var rejected error
	err := e.store.InTx(ctx, func(tx Store) error {
		v, err := tx.LockVote(ctx, roomID)
		if err != nil {
			return err
		}

		if err := e.expire(ctx, tx, v); err != nil {
			return err
		}
		if v.ClosedAt != nil {
			rejected = ErrVoteClosed
			return nil
		}

		member, err := tx.IsActiveMember(ctx, roomID, userID)
		if err != nil {
			return err
		}
		if !member {
			rejected = ErrMemberNotFound
			return nil
		}

		existing, err := tx.GetCast(ctx, roomID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			rejected = ErrAlreadyCast
			return nil
		}

		if err := tx.InsertCast(ctx, roomID, userID, choice, e.now()); err != nil {
			return err
		}
		return tx.IncrementCount(ctx, roomID, choice)
	})
	if err != nil {
		return err
	}
	if rejected != nil {
		return rejected
	}

	e.log.Info("vote cast", "room_id", roomID, "user_id", userID, "choice", choice)
	return nil
}

// Result reports the tally to a member, including the member's own choice
func (e *Engine) Result(ctx context.Context, roomID, userID uuid.UUID) (*Result, error) {
	var (
		res      *Result
		rejected error
	)
	err := e.store.InTx(ctx, func(tx Store) error {
		v, err := tx.LockVote(ctx, roomID)
		if err != nil {
			return err
		}

		if err := e.expire(ctx, tx, v); err != nil {
			return err
		}

		member, err := tx.IsActiveMember(ctx, roomID, userID)
		if err != nil {
			return err
		}
		if !member {
			rejected = ErrMemberNotFound
			return nil
		}

		mine, err := tx.GetCast(ctx, roomID, userID)
		if err != nil {
			return err
		}

		res = &Result{
			RoomID:           v.RoomID,
			AgreeCount:       v.AgreeCount,
			DisagreeCount:    v.DisagreeCount,
			TotalMemberCount: v.TotalMemberCount,
			Closed:           v.ClosedAt != nil,
			OpenedAt:         v.OpenedAt,
			ClosesAt:         v.OpenedAt.Add(e.window),
			ClosedAt:         v.ClosedAt,
			MyChoice:         mine,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return nil, rejected
	}

	return res, nil
}

func (e *Engine) expire(ctx context.Context, tx Store, v *Vote) error {
	if v.ClosedAt != nil {
		return nil
	}

	now := e.now()
	if !now.After(v.OpenedAt.Add(e.window)) {
		return nil
	}

	if err := tx.CloseVote(ctx, v.RoomID, now); err != nil {
		return err
	}
	v.ClosedAt = &now

	e.log.Debug("vote closed", "room_id", v.RoomID, "opened_at", v.OpenedAt)
	return nil
}
