package summary

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	messages map[uuid.UUID][]SourceMessage // round -> newest first
	names    map[uuid.UUID]string
	saved    map[uuid.UUID]*Summary
}

func newMemStore() *memStore {
	return &memStore{
		messages: make(map[uuid.UUID][]SourceMessage),
		names:    make(map[uuid.UUID]string),
		saved:    make(map[uuid.UUID]*Summary),
	}
}

func (m *memStore) RoundTextMessages(_ context.Context, roundID uuid.UUID) ([]SourceMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[roundID], nil
}

func (m *memStore) DisplayNames(_ context.Context, _ uuid.UUID) (map[uuid.UUID]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.names, nil
}

func (m *memStore) SaveSummary(_ context.Context, roundID uuid.UUID, s *Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[roundID] = s
	return nil
}

func (m *memStore) summaryOf(roundID uuid.UUID) *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[roundID]
}

// flakySummarizer fails the first failures calls
type flakySummarizer struct {
	failures int32
	calls    atomic.Int32
	lastReq  Request
}

func (f *flakySummarizer) Summarize(_ context.Context, req Request) (*Summary, error) {
	n := f.calls.Add(1)
	f.lastReq = req
	if n <= f.failures {
		return nil, errors.New("upstream unavailable")
	}
	return &Summary{Pro: []string{"p"}, Con: []string{"c"}}, nil
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func TestBuildTranscript_KeepsChronologicalTailWithinBudget(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	names := map[uuid.UUID]string{alice: "alice", bob: "bob"}

	// newest first: m5 ... m1, each costs 5+45 or 3+45
	var newestFirst []SourceMessage
	for i := 5; i >= 1; i-- {
		sender := alice
		if i%2 == 0 {
			sender = bob
		}
		newestFirst = append(newestFirst, SourceMessage{
			SenderID: sender,
			Content:  strings.Repeat(string(rune('a'+i)), 45),
		})
	}

	// m5(50) + m4(48) + m3(50) = 148, adding m2 would reach 196
	lines := BuildTranscript(newestFirst, names, 150)
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Repeat("d", 45), lines[0].Text)
	assert.Equal(t, strings.Repeat("e", 45), lines[1].Text)
	assert.Equal(t, strings.Repeat("f", 45), lines[2].Text)
	assert.Equal(t, "bob", lines[1].Name)
}

func TestBuildTranscript_StopsAtFirstOverflow(t *testing.T) {
	u := uuid.New()
	names := map[uuid.UUID]string{u: "u"}

	newestFirst := []SourceMessage{
		{SenderID: u, Content: strings.Repeat("x", 9)},   // 10
		{SenderID: u, Content: strings.Repeat("y", 100)}, // 101, overflows
		{SenderID: u, Content: "z"},                      // would fit, never reached
	}

	lines := BuildTranscript(newestFirst, names, 50)
	require.Len(t, lines, 1)
	assert.Equal(t, strings.Repeat("x", 9), lines[0].Text)
}

func TestBuildTranscript_CountsRunes(t *testing.T) {
	u := uuid.New()
	names := map[uuid.UUID]string{u: "독서"}

	lines := BuildTranscript([]SourceMessage{{SenderID: u, Content: "좋은 책"}}, names, 6)
	assert.Len(t, lines, 1)
}

func TestBuildTranscript_UnknownSender(t *testing.T) {
	lines := BuildTranscript([]SourceMessage{{SenderID: uuid.New(), Content: "hi"}}, nil, DefaultBudget)
	require.Len(t, lines, 1)
	assert.Equal(t, unknownSpeaker, lines[0].Name)
}

func TestPipeline_LargeRoundSendsOnlyFittingTail(t *testing.T) {
	store := newMemStore()
	u := uuid.New()
	store.names[u] = "reader"
	roundID := uuid.New()

	for i := 0; i < 100; i++ {
		store.messages[roundID] = append(store.messages[roundID], SourceMessage{
			SenderID: u, Content: strings.Repeat("w", 94),
		})
	}

	sum := &flakySummarizer{}
	p := NewPipeline(store, sum, logger.Discard())

	require.NoError(t, p.Run(context.Background(), Job{RoomID: uuid.New(), RoundID: roundID, Topic: "t", RoundNumber: 1}))

	// each line costs 100, so 24 fit into 2400
	assert.Len(t, sum.lastReq.Lines, 24)
	assert.Equal(t, 1, sum.lastReq.RoundNumber)
	assert.NotNil(t, store.summaryOf(roundID))
}

func TestPipeline_RetriesThenPersists(t *testing.T) {
	store := newMemStore()
	u := uuid.New()
	roundID := uuid.New()
	store.names[u] = "reader"
	store.messages[roundID] = []SourceMessage{{SenderID: u, Content: "a point"}}

	sum := &flakySummarizer{failures: 2}
	sleeps := &sleepRecorder{}
	p := NewPipeline(store, sum, logger.Discard(), WithSleep(sleeps.sleep))

	require.NoError(t, p.Run(context.Background(), Job{RoundID: roundID, RoundNumber: 2}))

	assert.Equal(t, int32(3), sum.calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeps.waits)
	assert.Equal(t, []string{"p"}, store.summaryOf(roundID).Pro)
}

func TestPipeline_GivesUpAfterThreeAttempts(t *testing.T) {
	store := newMemStore()
	u := uuid.New()
	roundID := uuid.New()
	store.messages[roundID] = []SourceMessage{{SenderID: u, Content: "a point"}}

	sum := &flakySummarizer{failures: 3}
	sleeps := &sleepRecorder{}
	p := NewPipeline(store, sum, logger.Discard(), WithSleep(sleeps.sleep))

	err := p.Run(context.Background(), Job{RoundID: roundID})
	require.Error(t, err)

	assert.Equal(t, int32(3), sum.calls.Load())
	assert.Len(t, sleeps.waits, 2)
	assert.Nil(t, store.summaryOf(roundID))
}

func TestPipeline_EmptyRoundSkipsCall(t *testing.T) {
	store := newMemStore()
	sum := &flakySummarizer{}
	p := NewPipeline(store, sum, logger.Discard())

	require.NoError(t, p.Run(context.Background(), Job{RoundID: uuid.New()}))
	assert.Zero(t, sum.calls.Load())
}

type blockingRunner struct {
	release chan struct{}
	ran     atomic.Int32
}

func (b *blockingRunner) Run(ctx context.Context, _ Job) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.ran.Add(1)
	return nil
}

func TestDispatcher_SubmitNeverBlocks(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	d := NewDispatcher(runner, DispatcherConfig{Workers: 1, QueueSize: 1, JobTimeout: time.Minute}, logger.Discard())
	d.Start()

	accepted := 0
	for i := 0; i < 10; i++ {
		if d.Submit(Job{RoundID: uuid.New()}) {
			accepted++
		}
	}
	// at most one running, one in the pool's hand-off and one queued
	assert.GreaterOrEqual(t, accepted, 1)
	assert.Less(t, accepted, 10)

	close(runner.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, int32(accepted), runner.ran.Load())

	assert.False(t, d.Submit(Job{RoundID: uuid.New()}))
}

func TestDispatcher_RunsPipelineJobs(t *testing.T) {
	store := newMemStore()
	u := uuid.New()
	roundID := uuid.New()
	store.messages[roundID] = []SourceMessage{{SenderID: u, Content: "hello"}}

	p := NewPipeline(store, &flakySummarizer{}, logger.Discard())
	d := NewDispatcher(p, DispatcherConfig{Workers: 2}, logger.Discard())
	d.Start()

	require.True(t, d.Submit(Job{RoundID: roundID}))
	require.NoError(t, d.Stop(context.Background()))
	assert.NotNil(t, store.summaryOf(roundID))
}
