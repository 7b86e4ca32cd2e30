package summary

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy is linear: the wait after attempt n is n*Backoff
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
	}
}

type Pipeline struct {
	store      Store
	summarizer Summarizer
	retry      RetryPolicy
	budget     int
	sleep      func(ctx context.Context, d time.Duration) error
	log        *slog.Logger
}

type Option func(*Pipeline)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(pl *Pipeline) {
		pl.retry = p
	}
}

func WithBudget(budget int) Option {
	return func(pl *Pipeline) {
		pl.budget = budget
	}
}

// WithSleep replaces the backoff wait, tests use it to skip real time
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(pl *Pipeline) {
		pl.sleep = sleep
	}
}

func NewPipeline(store Store, summarizer Summarizer, log *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		summarizer: summarizer,
		retry:      DefaultRetryPolicy(),
		budget:     DefaultBudget,
		sleep:      sleepCtx,
		log:        log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run summarizes one closed round. The message read and the summary write
// are separate statements; nothing is held open across the external call.
func (p *Pipeline) Run(ctx context.Context, job Job) error {
	msgs, err := p.store.RoundTextMessages(ctx, job.RoundID)
	if err != nil {
		return fmt.Errorf("failed to load round messages: %w", err)
	}

	names, err := p.store.DisplayNames(ctx, job.RoomID)
	if err != nil {
		return fmt.Errorf("failed to load display names: %w", err)
	}

	lines := BuildTranscript(msgs, names, p.budget)
	if len(lines) == 0 {
		p.log.Debug("round has no text messages, skipping summary",
			"room_id", job.RoomID,
			"round_id", job.RoundID,
			"round_number", job.RoundNumber)
		return nil
	}

	req := Request{
		Topic:       job.Topic,
		RoundNumber: job.RoundNumber,
		Lines:       lines,
	}

	sum, err := p.summarizeWithRetry(ctx, job, req)
	if err != nil {
		return err
	}

	if err := p.store.SaveSummary(ctx, job.RoundID, sum); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	p.log.Info("round summary saved",
		"room_id", job.RoomID,
		"round_id", job.RoundID,
		"round_number", job.RoundNumber,
		"lines", len(lines),
		"messages", len(msgs))

	return nil
}

func (p *Pipeline) summarizeWithRetry(ctx context.Context, job Job, req Request) (*Summary, error) {
	var lastErr error

	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		sum, err := p.summarizer.Summarize(ctx, req)
		if err == nil {
			return sum, nil
		}
		lastErr = err

		if attempt == p.retry.MaxAttempts {
			break
		}

		backoff := time.Duration(attempt) * p.retry.Backoff
		p.log.Warn("summarizer call failed, retrying",
			"round_id", job.RoundID,
			"attempt", attempt,
			"max_attempts", p.retry.MaxAttempts,
			"backoff", backoff,
			"error", err)

		if err := p.sleep(ctx, backoff); err != nil {
			return nil, fmt.Errorf("summary retry interrupted: %w", err)
		}
	}

	return nil, fmt.Errorf("summarizer failed after %d attempts: %w", p.retry.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
