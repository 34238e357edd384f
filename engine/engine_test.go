package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ver3trade/engine/core"
	zl "github.com/ver3trade/engine/logger/zerolog"
	"github.com/ver3trade/engine/portfolio"
)

// scriptRunner returns pre-scripted cycle summaries in order, then
// repeats the last one.
type scriptRunner struct {
	mu        sync.Mutex
	summaries []portfolio.Summary
	errs      []error
	cycles    int
	restored  *core.EngineState
}

func (r *scriptRunner) RunCycle(context.Context) (portfolio.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.cycles
	r.cycles++
	if i >= len(r.summaries) {
		i = len(r.summaries) - 1
	}
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	return r.summaries[i], err
}

func (r *scriptRunner) Restore(state *core.EngineState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restored = state
}

func (r *scriptRunner) cycleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cycles
}

type noopRestorer struct{ state *core.EngineState }

func (n *noopRestorer) Restore(state *core.EngineState) { n.state = state }

type stubStore struct {
	state   *core.EngineState
	loadErr error
}

func (s *stubStore) LoadState() (*core.EngineState, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.state == nil {
		return core.NewEngineState(), nil
	}
	return s.state, nil
}
func (s *stubStore) SaveState(*core.EngineState) error          { return nil }
func (s *stubStore) SaveFactors(core.FactorsRecord) error       { return nil }
func (s *stubStore) AppendTransaction(core.Transaction) error   { return nil }
func (s *stubStore) AppendOutcome(core.TradeOutcome) error      { return nil }
func (s *stubStore) SaveDailySnapshot(core.DailySnapshot) error { return nil }
func (s *stubStore) Outcomes() ([]core.TradeOutcome, error)     { return nil, nil }

// fastClock sleeps instantly and advances a virtual time.
type fastClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fastClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fastClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
}

func newEngine(runner *scriptRunner, store *stubStore, opts ...Option) (*Engine, *noopRestorer) {
	restorer := &noopRestorer{}
	opts = append([]Option{
		WithClock(&fastClock{now: time.Now()}),
		WithSummaryWriter(io.Discard),
		WithInterval(time.Millisecond),
	}, opts...)
	return New(runner, restorer, store, zl.NewNop(), opts...), restorer
}

func TestStopRequestExitsCleanly(t *testing.T) {
	runner := &scriptRunner{summaries: []portfolio.Summary{
		{Cycle: 1},
		{Cycle: 2, StopRequested: true},
	}}
	e, _ := newEngine(runner, &stubStore{})

	err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, runner.cycleCount())
}

func TestConsecutiveTimeoutsExitNonZero(t *testing.T) {
	runner := &scriptRunner{summaries: []portfolio.Summary{
		{Cycle: 1, ConsecutiveTimeoutCycles: 1, AllTimedOut: true},
		{Cycle: 2, ConsecutiveTimeoutCycles: 2, AllTimedOut: true},
		{Cycle: 3, ConsecutiveTimeoutCycles: 3, AllTimedOut: true},
	}}
	e, _ := newEngine(runner, &stubStore{})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConsecutiveTimeouts)
	assert.Equal(t, 3, runner.cycleCount())
}

func TestContextCancelStopsLoop(t *testing.T) {
	runner := &scriptRunner{summaries: []portfolio.Summary{{Cycle: 1}}}
	e, _ := newEngine(runner, &stubStore{}, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop on cancellation")
	}
}

func TestStateRestoredBeforeFirstCycle(t *testing.T) {
	state := core.NewEngineState()
	state.ConsecutiveLosses = 2
	runner := &scriptRunner{summaries: []portfolio.Summary{{Cycle: 1, StopRequested: true}}}
	e, restorer := newEngine(runner, &stubStore{state: state})

	require.NoError(t, e.Run(context.Background()))
	require.NotNil(t, restorer.state)
	assert.Equal(t, 2, restorer.state.ConsecutiveLosses)
	require.NotNil(t, runner.restored)
}

func TestCorruptStateAbortsStartup(t *testing.T) {
	runner := &scriptRunner{summaries: []portfolio.Summary{{Cycle: 1}}}
	e, _ := newEngine(runner, &stubStore{loadErr: core.ErrStateCorruption})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStateCorruption)
	assert.Equal(t, 0, runner.cycleCount())
}

func TestCycleErrorPropagates(t *testing.T) {
	boom := errors.New("disk full")
	runner := &scriptRunner{
		summaries: []portfolio.Summary{{Cycle: 1}},
		errs:      []error{boom},
	}
	e, _ := newEngine(runner, &stubStore{})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSleepAccountsForCycleElapsed(t *testing.T) {
	clock := &fastClock{now: time.Now()}
	runner := &scriptRunner{summaries: []portfolio.Summary{
		{Cycle: 1},
		{Cycle: 2, StopRequested: true},
	}}
	restorer := &noopRestorer{}
	e := New(runner, restorer, &stubStore{}, zl.NewNop(),
		WithClock(clock), WithSummaryWriter(io.Discard), WithInterval(time.Minute))

	require.NoError(t, e.Run(context.Background()))
	clock.mu.Lock()
	defer clock.mu.Unlock()
	require.Len(t, clock.sleeps, 1)
	assert.LessOrEqual(t, clock.sleeps[0], time.Minute)
}
