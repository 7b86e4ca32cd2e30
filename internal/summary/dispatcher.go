package summary

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

type Runner interface {
	Run(ctx context.Context, job Job) error
}

type DispatcherConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// Dispatcher runs summary jobs on a bounded pool, off the request path.
// Submit never blocks: when the queue is full the job is logged and dropped.
type Dispatcher struct {
	runner Runner
	cfg    DispatcherConfig
	log    *slog.Logger

	jobs chan Job
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(runner Runner, cfg DispatcherConfig, log *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 3 * time.Minute
	}

	return &Dispatcher{
		runner: runner,
		cfg:    cfg,
		log:    log,
		jobs:   make(chan Job, cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the feeding goroutine
func (d *Dispatcher) Start() {
	go d.loop()
}

func (d *Dispatcher) loop() {
	defer close(d.done)

	p := pool.New().WithMaxGoroutines(d.cfg.Workers)
	for job := range d.jobs {
		p.Go(func() {
			d.run(job)
		})
	}
	p.Wait()
}

func (d *Dispatcher) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("summary job panicked", "round_id", job.RoundID, "panic", r)
		}
	}()

	if err := d.runner.Run(ctx, job); err != nil {
		d.log.Error("summary abandoned",
			"room_id", job.RoomID,
			"round_id", job.RoundID,
			"round_number", job.RoundNumber,
			"error", err)
	}
}

// Submit enqueues a job and reports whether it was accepted
func (d *Dispatcher) Submit(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("summary dispatcher stopped, dropping job", "round_id", job.RoundID)
		return false
	}

	select {
	case d.jobs <- job:
		return true
	default:
		d.log.Error("summary queue full, dropping job",
			"room_id", job.RoomID,
			"round_id", job.RoundID,
			"queue_size", d.cfg.QueueSize)
		return false
	}
}

// Stop refuses new jobs and waits for queued and running ones, or ctx
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
