// Package engine runs the trading loop: it restores persisted state,
// drives fixed-period cycles through the portfolio manager, and handles
// graceful shutdown and the consecutive-timeout exit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ver3trade/engine/core"
	"github.com/ver3trade/engine/metric"
	"github.com/ver3trade/engine/portfolio"
)

// ErrConsecutiveTimeouts is returned when every coin timed out for the
// configured number of successive cycles. The supervisor restarts the
// process on this exit.
var ErrConsecutiveTimeouts = errors.New("all coins timed out in consecutive cycles")

// Loop defaults
const (
	DefaultInterval         = 900 * time.Second
	DefaultMaxTimeoutCycles = 3
)

// CycleRunner is the portfolio manager as the engine sees it.
type CycleRunner interface {
	RunCycle(ctx context.Context) (portfolio.Summary, error)
	Restore(state *core.EngineState)
}

// StateRestorer rehydrates a component from persisted state.
type StateRestorer interface {
	Restore(state *core.EngineState)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Engine owns the scheduler loop.
type Engine struct {
	manager  CycleRunner
	restorer StateRestorer
	store    core.StateStore
	log      core.Logger

	notifier core.NotifierWithStart
	clock    core.Clock
	summaryW io.Writer

	interval         time.Duration
	maxTimeoutCycles int
	quoteAsset       string
}

// Option configures the engine loop.
type Option func(*Engine)

// WithInterval sets the cycle period.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// WithMaxTimeoutCycles sets how many successive all-timeout cycles are
// tolerated before the engine exits for a supervisor restart.
func WithMaxTimeoutCycles(n int) Option {
	return func(e *Engine) { e.maxTimeoutCycles = n }
}

// WithNotifier attaches a notifier whose receive loop the engine
// starts and stops with its own lifecycle.
func WithNotifier(n core.NotifierWithStart) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithClock substitutes the time source for tests.
func WithClock(clock core.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithSummaryWriter redirects the shutdown performance report.
func WithSummaryWriter(w io.Writer) Option {
	return func(e *Engine) { e.summaryW = w }
}

// WithQuoteAsset names the quote currency in the shutdown report.
func WithQuoteAsset(asset string) Option {
	return func(e *Engine) { e.quoteAsset = asset }
}

// New wires the engine loop. The restorer is the executor; it gets the
// persisted positions back before the first cycle runs.
func New(manager CycleRunner, restorer StateRestorer, store core.StateStore, log core.Logger, opts ...Option) *Engine {
	e := &Engine{
		manager:          manager,
		restorer:         restorer,
		store:            store,
		log:              log,
		clock:            realClock{},
		summaryW:         os.Stdout,
		interval:         DefaultInterval,
		maxTimeoutCycles: DefaultMaxTimeoutCycles,
		quoteAsset:       "KRW",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drives cycles until the context is canceled, an operator stop
// arrives, or a fatal condition surfaces. A nil return is a clean
// shutdown; ErrConsecutiveTimeouts asks the supervisor for a restart.
func (e *Engine) Run(ctx context.Context) error {
	state, err := e.store.LoadState()
	if err != nil {
		return fmt.Errorf("startup state load: %w", err)
	}
	e.restorer.Restore(state)
	e.manager.Restore(state)
	e.log.WithFields(map[string]any{
		"positions":   len(state.Positions),
		"loss_streak": state.ConsecutiveLosses,
	}).Info("state restored")

	if e.notifier != nil {
		e.notifier.Start()
		defer e.notifier.Stop()
	}
	defer e.writeSummary()

	for {
		if ctx.Err() != nil {
			e.log.Info("shutdown requested, exiting cleanly")
			return nil
		}

		start := e.clock.Now()
		summary, err := e.manager.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				e.log.Info("cycle interrupted by shutdown")
				return nil
			}
			return fmt.Errorf("cycle %d: %w", summary.Cycle, err)
		}

		if summary.StopRequested {
			e.log.Info("operator stop, exiting cleanly")
			return nil
		}
		if e.maxTimeoutCycles > 0 && summary.ConsecutiveTimeoutCycles >= e.maxTimeoutCycles {
			return fmt.Errorf("%w (%d cycles)", ErrConsecutiveTimeouts, summary.ConsecutiveTimeoutCycles)
		}

		elapsed := e.clock.Now().Sub(start)
		if wait := e.interval - elapsed; wait > 0 {
			if !e.sleep(ctx, wait) {
				e.log.Info("shutdown requested during sleep, exiting cleanly")
				return nil
			}
		}
	}
}

// sleep waits out d unless the context is canceled first. Returns
// false on cancellation.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		e.clock.Sleep(d)
		close(done)
	}()

	select {
	case <-ctx.Done():
		return false
	case <-done:
		return true
	}
}

// writeSummary prints the realized performance report on shutdown.
func (e *Engine) writeSummary() {
	outcomes, err := e.store.Outcomes()
	if err != nil {
		e.log.WithError(err).Warn("performance history unavailable for summary")
		return
	}
	metric.WriteSummary(e.summaryW, outcomes, e.quoteAsset)
}
