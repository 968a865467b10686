package gtkpanel

import (
	"math"
	"time"

	"github.com/gotk3/gotk3/glib"

	"github.com/chess10kp/shellpanel/internal/loop"
)

// glibLoop is the GLib main context seen through loop.Loop.
type glibLoop struct{}

var _ loop.Loop = glibLoop{}

func (glibLoop) Now() time.Time {
	return time.Now()
}

func (glibLoop) TimeoutAdd(d time.Duration, fn func() bool) loop.SourceID {
	return loop.SourceID(glib.TimeoutAdd(timeoutMillis(d), fn))
}

// timeoutMillis converts d to GLib's guint milliseconds, saturating rather
// than wrapping.
func timeoutMillis(d time.Duration) uint {
	switch ms := d.Milliseconds(); {
	case ms <= 0:
		return 0
	case ms > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint(ms)
	}
}

func (glibLoop) SourceRemove(id loop.SourceID) {
	glib.SourceRemove(glib.SourceHandle(id))
}

func (glibLoop) IdleAdd(fn func()) {
	glib.IdleAdd(fn)
}
