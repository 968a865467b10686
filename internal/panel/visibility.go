package panel

import (
	"log/slog"
	"time"

	"github.com/chess10kp/shellpanel/internal/loop"
)

// VisibilityState is where the panel currently sits.
type VisibilityState int

const (
	Visible VisibilityState = iota
	Hidden
)

// String returns the string representation of VisibilityState
func (s VisibilityState) String() string {
	switch s {
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// VisibilityController owns the hide/show state machine. All methods must
// be called on the loop.
type VisibilityController struct {
	loop    loop.Loop
	surface Surface
	geom    Geometry
	delay   time.Duration
	logger  *slog.Logger

	state VisibilityState

	// generation invalidates deferred hides scheduled before the latest
	// PointerEnter.
	generation uint64
	pending    loop.SourceID
	hasPending bool
}

// NewVisibilityController creates a controller in the Visible state. It does
// not touch the surface until the first event.
func NewVisibilityController(l loop.Loop, surface Surface, geom Geometry, hideDelay time.Duration, logger *slog.Logger) *VisibilityController {
	if logger == nil {
		logger = slog.Default()
	}
	return &VisibilityController{
		loop:    l,
		surface: surface,
		geom:    geom,
		delay:   hideDelay,
		logger:  logger.With("component", "visibility"),
		state:   Visible,
	}
}

// State returns the current visibility state.
func (v *VisibilityController) State() VisibilityState {
	return v.state
}

// HidePending reports whether a deferred hide is scheduled.
func (v *VisibilityController) HidePending() bool {
	return v.hasPending
}

// PointerEnter shows the panel immediately and cancels any pending hide.
func (v *VisibilityController) PointerEnter() {
	v.cancelPending()
	v.show()
}

// PointerLeave schedules a hide after the configured delay. A leave while a
// hide is already pending restarts the delay.
func (v *VisibilityController) PointerLeave() {
	v.cancelPending()

	gen := v.generation
	v.pending = v.loop.TimeoutAdd(v.delay, func() bool {
		if gen != v.generation {
			return false
		}
		v.hasPending = false
		v.hide()
		return false
	})
	v.hasPending = true
}

// Show reveals the panel without a pointer event.
func (v *VisibilityController) Show() {
	v.PointerEnter()
}

// Hide hides the panel at once, skipping the delay.
func (v *VisibilityController) Hide() {
	v.cancelPending()
	v.hide()
}

// Stop drops any pending hide.
func (v *VisibilityController) Stop() {
	v.cancelPending()
}

func (v *VisibilityController) show() {
	v.surface.SetPosition(0, v.geom.VisibleY())
	if v.state != Visible {
		v.logger.Debug("panel shown")
	}
	v.state = Visible
}

func (v *VisibilityController) hide() {
	v.surface.SetPosition(0, v.geom.HiddenY())
	if v.state != Hidden {
		v.logger.Debug("panel hidden")
	}
	v.state = Hidden
}

func (v *VisibilityController) cancelPending() {
	v.generation++
	if v.hasPending {
		v.loop.SourceRemove(v.pending)
		v.hasPending = false
	}
}
