// Package panel holds the panel's behavior: where it sits, when it hides,
// and what text it shows. It talks to the window only through Surface and
// to time only through loop.Loop, so all of it runs under a fake loop in
// tests.
package panel

// Height is the fixed panel height in pixels.
const Height = 18

// Surface is the on-screen panel. Implementations are pure effectors: they
// never call back into the controllers.
type Surface interface {
	// SetPosition moves the panel's top-left corner.
	SetPosition(x, y int)
	// SetText replaces the displayed text.
	SetText(text string)
	// SetError marks the displayed text as stale because the latest
	// refresh failed. A nil error clears the mark.
	SetError(err error)
}

// Geometry is computed once at startup from the primary monitor.
type Geometry struct {
	Width        int
	Height       int
	ScreenHeight int
}

// NewGeometry returns the geometry for a monitor of the given size.
func NewGeometry(monitorWidth, monitorHeight int) Geometry {
	return Geometry{
		Width:        monitorWidth,
		Height:       Height,
		ScreenHeight: monitorHeight,
	}
}

// VisibleY is the top edge of the fully shown panel.
func (g Geometry) VisibleY() int {
	return g.ScreenHeight - g.Height
}

// HiddenY leaves a one pixel sliver on screen so the pointer can still
// enter the panel.
func (g Geometry) HiddenY() int {
	return g.ScreenHeight - 1
}

// BottomMargin converts a top-edge y coordinate into the bottom margin used
// by a surface anchored to the bottom screen edge. Hidden panels get a
// negative margin that pushes all but one row off screen.
func (g Geometry) BottomMargin(y int) int {
	return g.VisibleY() - y
}
