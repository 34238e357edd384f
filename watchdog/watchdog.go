// Package watchdog supervises the engine process: it restarts the
// engine on failure, hard-kills it when its output goes quiet for too
// long, and refuses to keep restarting a crash loop.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ver3trade/engine/core"
)

// Supervision defaults
const (
	DefaultHangTimeout      = 600 * time.Second
	DefaultCheckInterval    = 30 * time.Second
	DefaultRestartDelay     = 5 * time.Second
	DefaultMaxRapidRestarts = 5
	DefaultRapidWindow      = 10 * time.Minute
)

// ErrCrashLoop is returned when the engine restarts too often inside
// the rapid-restart window.
var ErrCrashLoop = errors.New("engine restarting too fast, giving up")

// Config holds the supervisor tunables.
type Config struct {
	// Command is the argv of the engine process to supervise.
	Command []string

	// HangTimeout kills the engine after this long without any output.
	HangTimeout time.Duration

	// CheckInterval is how often output activity is inspected.
	CheckInterval time.Duration

	// RestartDelay is the pause before relaunching a failed engine.
	RestartDelay time.Duration

	// MaxRapidRestarts restarts inside RapidWindow abort supervision.
	MaxRapidRestarts int
	RapidWindow      time.Duration
}

// DefaultConfig returns the stock supervision settings for command.
func DefaultConfig(command []string) Config {
	return Config{
		Command:          command,
		HangTimeout:      DefaultHangTimeout,
		CheckInterval:    DefaultCheckInterval,
		RestartDelay:     DefaultRestartDelay,
		MaxRapidRestarts: DefaultMaxRapidRestarts,
		RapidWindow:      DefaultRapidWindow,
	}
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Supervisor runs and watches the engine process.
type Supervisor struct {
	cfg   Config
	log   core.Logger
	clock core.Clock
}

// Option configures the supervisor.
type Option func(*Supervisor)

// WithClock substitutes the time source for tests.
func WithClock(clock core.Clock) Option {
	return func(s *Supervisor) { s.clock = clock }
}

// New creates a supervisor for cfg.Command.
func New(cfg Config, log core.Logger, opts ...Option) (*Supervisor, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("watchdog: empty command")
	}
	s := &Supervisor{cfg: cfg, log: log, clock: realClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run supervises the engine until it exits cleanly, the context is
// canceled, or a crash loop is detected.
func (s *Supervisor) Run(ctx context.Context) error {
	tracker := newRestartTracker(s.cfg.MaxRapidRestarts, s.cfg.RapidWindow)

	for {
		if ctx.Err() != nil {
			return nil
		}

		killed, err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if err == nil && !killed {
			s.log.Info("engine exited cleanly, supervision complete")
			return nil
		}

		if killed {
			s.log.Warn("engine killed after output went quiet")
		} else {
			s.log.WithError(err).Warn("engine exited with failure")
		}

		if !tracker.allow(s.clock.Now()) {
			return fmt.Errorf("%w (%d restarts in %s)",
				ErrCrashLoop, s.cfg.MaxRapidRestarts, s.cfg.RapidWindow)
		}

		s.log.Infof("restarting engine in %s", s.cfg.RestartDelay)
		s.clock.Sleep(s.cfg.RestartDelay)
	}
}

// runOnce starts the engine and waits for it to finish. killed reports
// that the hang watchdog terminated it.
func (s *Supervisor) runOnce(ctx context.Context) (killed bool, err error) {
	activity := newActivityWriter(s.clock)

	cmd := exec.CommandContext(ctx, s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Stdout = newTeeWriter(os.Stdout, activity)
	cmd.Stderr = newTeeWriter(os.Stderr, activity)
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("start engine: %w", err)
	}
	s.log.WithField("pid", cmd.Process.Pid).Info("engine started")

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	killedCh := make(chan struct{}, 1)
	go s.watchHang(watchCtx, activity, cmd.Process, killedCh)

	waitErr := cmd.Wait()
	stopWatch()

	select {
	case <-killedCh:
		return true, waitErr
	default:
		return false, waitErr
	}
}

// watchHang kills the process when no output arrives for HangTimeout.
func (s *Supervisor) watchHang(ctx context.Context, activity *activityWriter, proc *os.Process, killed chan<- struct{}) {
	if s.cfg.HangTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := s.clock.Now().Sub(activity.last())
			if idle < s.cfg.HangTimeout {
				continue
			}
			s.log.Warnf("no engine output for %s, killing pid %d", idle.Round(time.Second), proc.Pid)
			killed <- struct{}{}
			if err := proc.Kill(); err != nil {
				s.log.WithError(err).Error("failed to kill hung engine")
			}
			return
		}
	}
}

// restartTracker bounds restarts inside a sliding window.
type restartTracker struct {
	max    int
	window time.Duration
	times  []time.Time
}

func newRestartTracker(max int, window time.Duration) *restartTracker {
	return &restartTracker{max: max, window: window}
}

// allow records a restart at now and reports whether it stays within
// the budget.
func (t *restartTracker) allow(now time.Time) bool {
	if t.max <= 0 {
		return true
	}

	cutoff := now.Add(-t.window)
	kept := t.times[:0]
	for _, ts := range t.times {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.times = append(kept, now)

	return len(t.times) <= t.max
}

// activityWriter records the time of the last write.
type activityWriter struct {
	clock core.Clock

	mu       sync.Mutex
	lastSeen time.Time
}

func newActivityWriter(clock core.Clock) *activityWriter {
	return &activityWriter{clock: clock, lastSeen: clock.Now()}
}

func (w *activityWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.lastSeen = w.clock.Now()
	w.mu.Unlock()
	return len(p), nil
}

func (w *activityWriter) last() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// teeWriter duplicates writes to both sinks, ignoring sink errors so
// the engine's own output path never fails.
type teeWriter struct {
	out      *os.File
	activity *activityWriter
}

func newTeeWriter(out *os.File, activity *activityWriter) *teeWriter {
	return &teeWriter{out: out, activity: activity}
}

func (t *teeWriter) Write(p []byte) (int, error) {
	_, _ = t.activity.Write(p)
	_, _ = t.out.Write(p)
	return len(p), nil
}
