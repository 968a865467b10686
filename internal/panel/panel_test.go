package panel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chess10kp/shellpanel/internal/config"
	"github.com/chess10kp/shellpanel/internal/loop"
	"github.com/chess10kp/shellpanel/internal/runner"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type position struct{ X, Y int }

// mockSurface records every call made by the controllers.
type mockSurface struct {
	positions []position
	texts     []string
	errs      []error
}

func (s *mockSurface) SetPosition(x, y int) { s.positions = append(s.positions, position{x, y}) }
func (s *mockSurface) SetText(text string)   { s.texts = append(s.texts, text) }
func (s *mockSurface) SetError(err error)    { s.errs = append(s.errs, err) }

func (s *mockSurface) lastPosition() position {
	if len(s.positions) == 0 {
		return position{-1, -1}
	}
	return s.positions[len(s.positions)-1]
}

type runResult struct {
	text string
	err  error
}

// mockRunner returns queued results in order, then repeats the last one.
type mockRunner struct {
	mu       sync.Mutex
	results  []runResult
	commands []string
	calledAt []time.Time
	clock    loop.Loop
}

func (r *mockRunner) Run(ctx context.Context, command string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, command)
	if r.clock != nil {
		r.calledAt = append(r.calledAt, r.clock.Now())
	}
	if len(r.results) == 0 {
		return "", nil
	}
	res := r.results[0]
	if len(r.results) > 1 {
		r.results = r.results[1:]
	}
	return res.text, res.err
}

func (r *mockRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}

var testGeometry = NewGeometry(1920, 1080)

func TestGeometry(t *testing.T) {
	g := testGeometry
	assert.Equal(t, 1920, g.Width)
	assert.Equal(t, 18, g.Height)
	assert.Equal(t, 1062, g.VisibleY())
	assert.Equal(t, 1079, g.HiddenY())
	assert.Equal(t, 0, g.BottomMargin(g.VisibleY()))
	assert.Equal(t, -17, g.BottomMargin(g.HiddenY()))
}

func newVisibility(t *testing.T, delay time.Duration) (*VisibilityController, *mockSurface, *loop.Fake) {
	t.Helper()
	fake := loop.NewFake(epoch)
	surface := &mockSurface{}
	return NewVisibilityController(fake, surface, testGeometry, delay, nil), surface, fake
}

func TestPointerEnterShowsImmediately(t *testing.T) {
	for _, start := range []VisibilityState{Visible, Hidden} {
		t.Run(start.String(), func(t *testing.T) {
			v, surface, _ := newVisibility(t, 500*time.Millisecond)
			if start == Hidden {
				v.Hide()
			}

			v.PointerEnter()
			assert.Equal(t, Visible, v.State())
			assert.Equal(t, position{0, 1062}, surface.lastPosition())
		})
	}
}

func TestPointerLeaveHidesAfterDelay(t *testing.T) {
	v, surface, fake := newVisibility(t, 500*time.Millisecond)

	v.PointerLeave()
	assert.True(t, v.HidePending())
	assert.Empty(t, surface.positions, "leave must not move the panel synchronously")

	fake.Advance(499 * time.Millisecond)
	assert.Equal(t, Visible, v.State())
	assert.Empty(t, surface.positions)

	fake.Advance(time.Millisecond)
	assert.Equal(t, Hidden, v.State())
	assert.Equal(t, position{0, 1079}, surface.lastPosition())
	assert.False(t, v.HidePending())
}

func TestZeroHideDelayIsStillDeferred(t *testing.T) {
	v, surface, fake := newVisibility(t, 0)

	v.PointerLeave()
	assert.Equal(t, Visible, v.State())
	assert.Empty(t, surface.positions)

	fake.Advance(0)
	assert.Equal(t, Hidden, v.State())
}

func TestPointerEnterCancelsPendingHide(t *testing.T) {
	v, surface, fake := newVisibility(t, 500*time.Millisecond)

	v.PointerLeave()
	fake.Advance(200 * time.Millisecond)
	v.PointerEnter()
	fake.Advance(time.Second)

	assert.Equal(t, Visible, v.State())
	assert.Equal(t, []position{{0, 1062}}, surface.positions)
	assert.Equal(t, 0, fake.Pending())
}

func TestRepeatedLeaveRestartsDelay(t *testing.T) {
	v, surface, fake := newVisibility(t, 500*time.Millisecond)

	v.PointerLeave()
	fake.Advance(400 * time.Millisecond)
	v.PointerLeave()
	fake.Advance(400 * time.Millisecond)
	assert.Equal(t, Visible, v.State())
	assert.Equal(t, 1, fake.Pending())

	fake.Advance(100 * time.Millisecond)
	assert.Equal(t, Hidden, v.State())
	assert.Len(t, surface.positions, 1)
}

func TestRapidEnterLeaveSequence(t *testing.T) {
	v, surface, fake := newVisibility(t, 300*time.Millisecond)

	for i := 0; i < 10; i++ {
		v.PointerLeave()
		fake.Advance(50 * time.Millisecond)
		v.PointerEnter()
	}
	fake.Advance(time.Second)
	assert.Equal(t, Visible, v.State())
	for _, p := range surface.positions {
		assert.Equal(t, 1062, p.Y, "panel must never hide while the pointer keeps returning")
	}

	v.PointerLeave()
	fake.Advance(300 * time.Millisecond)
	assert.Equal(t, Hidden, v.State())
}

func TestHideIsImmediate(t *testing.T) {
	v, surface, fake := newVisibility(t, 500*time.Millisecond)

	v.PointerLeave()
	v.Hide()
	assert.Equal(t, Hidden, v.State())
	assert.Equal(t, position{0, 1079}, surface.lastPosition())
	assert.Equal(t, 0, fake.Pending())
}

func TestVisibilityStateString(t *testing.T) {
	assert.Equal(t, "visible", Visible.String())
	assert.Equal(t, "hidden", Hidden.String())
	assert.Equal(t, "unknown", VisibilityState(9).String())
}

// newScheduler returns a started scheduler whose command runs inline.
func newScheduler(t *testing.T, r *mockRunner, policy ErrorPolicy, onFatal func(error)) (*RefreshScheduler, *mockSurface, *loop.Fake) {
	t.Helper()
	fake := loop.NewFake(epoch)
	r.clock = fake
	surface := &mockSurface{}
	s, err := NewRefreshScheduler(fake, r, surface, SchedulerOptions{
		Command:  "/usr/bin/date",
		Interval: time.Second,
		Policy:   policy,
		OnFatal:  onFatal,
	})
	require.NoError(t, err)
	s.spawn = func(f func()) { f() }
	require.NoError(t, s.Start())
	return s, surface, fake
}

func TestSchedulerRunsOncePerInterval(t *testing.T) {
	r := &mockRunner{results: []runResult{{text: "12:30"}}}
	s, surface, fake := newScheduler(t, r, PolicyKeepLastGood, nil)

	assert.Equal(t, 0, r.calls(), "first tick waits one interval")

	fake.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, r.calls())

	fake.Advance(time.Millisecond)
	assert.Equal(t, 1, r.calls())

	fake.Advance(9 * time.Second)
	assert.Equal(t, 10, r.calls())
	assert.Equal(t, uint64(10), s.Ticks())
	assert.Equal(t, []string{"/usr/bin/date"}, r.commands[:1])
	assert.Len(t, surface.texts, 10)
}

func TestSchedulerPeriodStartsAfterTickCompletes(t *testing.T) {
	r := &mockRunner{results: []runResult{{text: "a"}}, clock: nil}
	fake := loop.NewFake(epoch)
	r.clock = fake
	surface := &mockSurface{}
	s, err := NewRefreshScheduler(fake, r, surface, SchedulerOptions{Command: "cmd", Interval: time.Second})
	require.NoError(t, err)

	var deferred []func()
	s.spawn = func(f func()) { deferred = append(deferred, f) }
	require.NoError(t, s.Start())

	fake.Advance(time.Second)
	require.Len(t, deferred, 1)

	// The command is still running: no further ticks, no overlap.
	fake.Advance(5 * time.Second)
	assert.Len(t, deferred, 1)
	assert.Equal(t, 0, fake.Pending())

	deferred[0]()
	fake.Advance(0)
	assert.Equal(t, []string{"a"}, surface.texts)

	fake.Advance(999 * time.Millisecond)
	assert.Len(t, deferred, 1)
	fake.Advance(time.Millisecond)
	assert.Len(t, deferred, 2)
	assert.Equal(t, epoch.Add(7*time.Second), fake.Now())
}

func TestSchedulerTrimsAndReplacesText(t *testing.T) {
	r := &mockRunner{results: []runResult{{text: "one"}, {text: "two"}}}
	s, surface, fake := newScheduler(t, r, PolicyKeepLastGood, nil)

	fake.Advance(time.Second)
	assert.Equal(t, "one", s.Text())
	fake.Advance(time.Second)
	assert.Equal(t, "two", s.Text())
	assert.Equal(t, []string{"one", "two"}, surface.texts)
	assert.Equal(t, epoch.Add(2*time.Second), s.LastUpdate())
}

func TestSchedulerKeepsLastGoodTextOnFailure(t *testing.T) {
	failure := &runner.RunError{Kind: runner.KindNotUTF8, Command: "cmd"}
	r := &mockRunner{results: []runResult{{text: "good"}, {err: failure}, {text: "better"}}}
	s, surface, fake := newScheduler(t, r, PolicyKeepLastGood, func(error) {
		t.Fatal("keep-last-good must not be fatal")
	})

	fake.Advance(time.Second)
	fake.Advance(time.Second)
	assert.Equal(t, "good", s.Text())
	assert.ErrorIs(t, s.LastError(), runner.ErrNotUTF8)
	assert.Equal(t, []string{"good"}, surface.texts)
	require.Len(t, surface.errs, 1)
	assert.ErrorIs(t, surface.errs[0], runner.ErrNotUTF8)

	fake.Advance(time.Second)
	assert.Equal(t, "better", s.Text())
	assert.NoError(t, s.LastError())
	require.Len(t, surface.errs, 2)
	assert.Nil(t, surface.errs[1], "success clears the error mark")
}

func TestSchedulerFailFast(t *testing.T) {
	failure := &runner.RunError{Kind: runner.KindSpawnFailed, Command: "cmd", Err: errors.New("not found")}
	r := &mockRunner{results: []runResult{{err: failure}}}

	var fatal error
	_, surface, fake := newScheduler(t, r, PolicyFailFast, func(err error) { fatal = err })

	fake.Advance(time.Second)
	require.Error(t, fatal)
	assert.ErrorIs(t, fatal, runner.ErrSpawnFailed)
	assert.Empty(t, surface.texts)

	fake.Advance(10 * time.Second)
	assert.Equal(t, 1, r.calls(), "no ticks after a fatal failure")
}

func TestSchedulerRefreshNow(t *testing.T) {
	r := &mockRunner{results: []runResult{{text: "now"}}}
	s, surface, fake := newScheduler(t, r, PolicyKeepLastGood, nil)

	assert.True(t, s.RefreshNow())
	fake.Advance(0)
	assert.Equal(t, []string{"now"}, surface.texts)
	assert.Equal(t, 1, fake.Pending(), "exactly one tick armed after a manual refresh")

	fake.Advance(time.Second)
	assert.Equal(t, 2, r.calls())
}

func TestSchedulerRefreshNowWhileInFlight(t *testing.T) {
	r := &mockRunner{}
	fake := loop.NewFake(epoch)
	s, err := NewRefreshScheduler(fake, r, &mockSurface{}, SchedulerOptions{Command: "cmd", Interval: time.Second})
	require.NoError(t, err)
	s.spawn = func(func()) {}
	require.NoError(t, s.Start())

	fake.Advance(time.Second)
	assert.False(t, s.RefreshNow())
}

func TestSchedulerStop(t *testing.T) {
	r := &mockRunner{results: []runResult{{text: "x"}}}
	s, _, fake := newScheduler(t, r, PolicyKeepLastGood, nil)

	fake.Advance(time.Second)
	s.Stop()
	s.Stop()
	fake.Advance(10 * time.Second)
	assert.Equal(t, 1, r.calls())
	assert.False(t, s.RefreshNow())
	assert.Equal(t, 0, fake.Pending())
}

func TestSchedulerRejectsBadInterval(t *testing.T) {
	_, err := NewRefreshScheduler(loop.NewFake(epoch), &mockRunner{}, &mockSurface{}, SchedulerOptions{Command: "cmd"})
	assert.ErrorIs(t, err, ErrNonPositiveInterval)
}

func TestSchedulerDoubleStart(t *testing.T) {
	s, _, _ := newScheduler(t, &mockRunner{}, PolicyKeepLastGood, nil)
	assert.ErrorIs(t, s.Start(), ErrSchedulerAlreadyRunning)
}

func TestPanelStartPlacesPanelAndPolls(t *testing.T) {
	fake := loop.NewFake(epoch)
	surface := &mockSurface{}
	r := &mockRunner{results: []runResult{{text: "12:30"}}, clock: fake}
	cfg := config.Config{Cmd: "/bin/date", HideDelayMs: 250, TimeoutS: 2}

	p, err := New(cfg, testGeometry, surface, fake, r, Options{})
	require.NoError(t, err)
	p.Scheduler.spawn = func(f func()) { f() }
	require.NoError(t, p.Start())

	assert.Equal(t, []string{""}, surface.texts)
	assert.Equal(t, position{0, 1062}, surface.lastPosition())

	fake.Advance(2 * time.Second)
	assert.Equal(t, "12:30", p.Scheduler.Text())
	assert.Equal(t, []time.Time{epoch.Add(2 * time.Second)}, r.calledAt)

	// Pointer handling and polling interleave on the same loop.
	p.Visibility.PointerLeave()
	fake.Advance(250 * time.Millisecond)
	assert.Equal(t, Hidden, p.Visibility.State())
	assert.Equal(t, "12:30", p.Scheduler.Text())

	p.Stop()
	fake.Advance(time.Minute)
	assert.Equal(t, 1, r.calls())
}

func TestErrorPolicyString(t *testing.T) {
	assert.Equal(t, "keep-last-good", PolicyKeepLastGood.String())
	assert.Equal(t, "fail-fast", PolicyFailFast.String())
	assert.Equal(t, "unknown", ErrorPolicy(7).String())
}
