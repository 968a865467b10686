// Package loop abstracts the single-threaded UI event loop the panel runs on.
//
// Every panel state transition happens inside a callback dispatched by a
// Loop, so panel code never takes locks. Production code uses the GLib main
// loop (see internal/gtkpanel); tests use Fake, which only advances when told
// to.
package loop

import "time"

// SourceID identifies a pending timeout registered with a Loop.
type SourceID uint

// Loop schedules callbacks on the UI thread.
type Loop interface {
	// Now returns the loop's notion of the current time.
	Now() time.Time

	// TimeoutAdd runs fn after d has elapsed. fn returning true re-arms the
	// timeout with the same interval; returning false removes it.
	TimeoutAdd(d time.Duration, fn func() bool) SourceID

	// SourceRemove cancels a pending timeout. Removing an unknown or
	// already-fired source is a no-op.
	SourceRemove(id SourceID)

	// IdleAdd queues fn to run on the loop as soon as it is idle. Safe to
	// call from any goroutine.
	IdleAdd(fn func())
}
