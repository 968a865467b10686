package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chess10kp/shellpanel/internal/loop"
)

var (
	ErrSchedulerAlreadyRunning = errors.New("refresh scheduler is already running")
	ErrNonPositiveInterval     = errors.New("poll interval must be positive")
)

// Runner produces the panel text. runner.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// ErrorPolicy decides what a failed refresh does.
type ErrorPolicy int

const (
	// PolicyKeepLastGood logs the failure, marks the surface, keeps the
	// last good text and keeps polling.
	PolicyKeepLastGood ErrorPolicy = iota
	// PolicyFailFast hands the failure to the fatal handler, which is
	// expected to terminate the application.
	PolicyFailFast
)

// String returns the string representation of ErrorPolicy
func (p ErrorPolicy) String() string {
	switch p {
	case PolicyKeepLastGood:
		return "keep-last-good"
	case PolicyFailFast:
		return "fail-fast"
	default:
		return "unknown"
	}
}

// RefreshScheduler runs the configured command every interval and pushes its
// output to the surface. The command runs off the loop; its result comes
// back through IdleAdd, and only then is the next tick armed. Ticks are
// therefore never concurrent and the period is measured from the end of one
// tick to the start of the next.
type RefreshScheduler struct {
	loop     loop.Loop
	runner   Runner
	surface  Surface
	command  string
	interval time.Duration
	policy   ErrorPolicy
	onFatal  func(error)
	logger   *slog.Logger

	// spawn runs the command off the loop.
	spawn func(func())

	ctx    context.Context
	cancel context.CancelFunc

	running   bool
	inFlight  bool
	next      loop.SourceID
	hasNext   bool
	text      string
	lastErr   error
	lastOK    time.Time
	tickCount uint64
}

// SchedulerOptions configures a RefreshScheduler.
type SchedulerOptions struct {
	Command  string
	Interval time.Duration
	Policy   ErrorPolicy
	// OnFatal receives the error under PolicyFailFast.
	OnFatal func(error)
	Logger  *slog.Logger
}

// NewRefreshScheduler creates a stopped scheduler.
func NewRefreshScheduler(l loop.Loop, runner Runner, surface Surface, opts SchedulerOptions) (*RefreshScheduler, error) {
	if opts.Interval <= 0 {
		return nil, ErrNonPositiveInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshScheduler{
		loop:     l,
		runner:   runner,
		surface:  surface,
		command:  opts.Command,
		interval: opts.Interval,
		policy:   opts.Policy,
		onFatal:  opts.OnFatal,
		logger:   logger.With("component", "scheduler"),
		spawn:    func(f func()) { go f() },
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start arms the first tick one interval from now.
func (s *RefreshScheduler) Start() error {
	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.armNext()

	s.logger.Info("refresh scheduler started", "command", s.command, "interval", s.interval, "policy", s.policy)
	return nil
}

// Stop cancels the pending tick and any command in flight.
func (s *RefreshScheduler) Stop() {
	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	if s.hasNext {
		s.loop.SourceRemove(s.next)
		s.hasNext = false
	}
	s.logger.Info("refresh scheduler stopped")
}

// RefreshNow runs a tick immediately instead of waiting for the timer. It
// reports false when a tick is already in flight or the scheduler is
// stopped.
func (s *RefreshScheduler) RefreshNow() bool {
	if !s.running || s.inFlight {
		return false
	}
	if s.hasNext {
		s.loop.SourceRemove(s.next)
		s.hasNext = false
	}
	s.tick()
	return true
}

// Text returns the last successfully displayed text.
func (s *RefreshScheduler) Text() string {
	return s.text
}

// LastError returns the error of the most recent tick, or nil if it
// succeeded.
func (s *RefreshScheduler) LastError() error {
	return s.lastErr
}

// LastUpdate returns when the text was last replaced. Zero before the first
// successful tick.
func (s *RefreshScheduler) LastUpdate() time.Time {
	return s.lastOK
}

// Ticks returns how many ticks have completed.
func (s *RefreshScheduler) Ticks() uint64 {
	return s.tickCount
}

func (s *RefreshScheduler) armNext() {
	s.next = s.loop.TimeoutAdd(s.interval, func() bool {
		s.hasNext = false
		s.tick()
		return false
	})
	s.hasNext = true
}

func (s *RefreshScheduler) tick() {
	if s.inFlight {
		return
	}
	s.inFlight = true

	ctx := s.ctx
	s.spawn(func() {
		text, err := s.runner.Run(ctx, s.command)
		s.loop.IdleAdd(func() {
			s.finish(text, err)
		})
	})
}

func (s *RefreshScheduler) finish(text string, err error) {
	s.inFlight = false
	s.tickCount++

	if !s.running {
		return
	}

	if err != nil {
		s.lastErr = err
		if s.policy == PolicyFailFast {
			s.logger.Error("refresh failed, stopping", "error", err)
			s.Stop()
			if s.onFatal != nil {
				s.onFatal(fmt.Errorf("refresh failed: %w", err))
			}
			return
		}
		s.logger.Warn("refresh failed, keeping last text", "error", err)
		s.surface.SetError(err)
	} else {
		if s.lastErr != nil {
			s.surface.SetError(nil)
		}
		s.lastErr = nil
		s.lastOK = s.loop.Now()
		s.text = text
		s.surface.SetText(text)
	}

	s.armNext()
}
