package loop

import (
	"sort"
	"sync"
	"time"
)

// Fake is a deterministic Loop for tests. Time stands still until Advance
// is called; timeouts then fire in deadline order, with idle callbacks
// drained before each timeout and once more at the end.
//
// IdleAdd may be called from any goroutine. Advance and Flush must be called
// from the test goroutine only.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	nextID  SourceID
	sources map[SourceID]*fakeSource
	idle    []func()
}

type fakeSource struct {
	id       SourceID
	deadline time.Time
	interval time.Duration
	fn       func() bool
}

// NewFake returns a Fake loop starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{
		now:     start,
		sources: make(map[SourceID]*fakeSource),
	}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// TimeoutAdd registers fn to fire once the fake time reaches now+d.
func (f *Fake) TimeoutAdd(d time.Duration, fn func() bool) SourceID {
	f.mu.Lock()
	defer f.mu.Unlock()

	if d < 0 {
		d = 0
	}
	f.nextID++
	f.sources[f.nextID] = &fakeSource{
		id:       f.nextID,
		deadline: f.now.Add(d),
		interval: d,
		fn:       fn,
	}
	return f.nextID
}

// SourceRemove cancels a pending timeout.
func (f *Fake) SourceRemove(id SourceID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sources, id)
}

// IdleAdd queues fn for the next drain.
func (f *Fake) IdleAdd(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idle = append(f.idle, fn)
}

// Pending returns the number of registered timeouts.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

// Flush runs queued idle callbacks, including ones queued while flushing.
func (f *Fake) Flush() {
	for {
		f.mu.Lock()
		if len(f.idle) == 0 {
			f.mu.Unlock()
			return
		}
		fn := f.idle[0]
		f.idle = f.idle[1:]
		f.mu.Unlock()

		fn()
	}
}

// Advance moves the fake time forward by d, firing every timeout whose
// deadline is reached along the way.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.Flush()

		f.mu.Lock()
		src := f.earliestDueLocked(target)
		if src == nil {
			f.now = target
			f.mu.Unlock()
			break
		}
		f.now = src.deadline
		f.mu.Unlock()

		again := src.fn()

		f.mu.Lock()
		if _, live := f.sources[src.id]; live {
			if again {
				src.deadline = f.now.Add(src.interval)
			} else {
				delete(f.sources, src.id)
			}
		}
		f.mu.Unlock()
	}

	f.Flush()
}

func (f *Fake) earliestDueLocked(target time.Time) *fakeSource {
	due := make([]*fakeSource, 0, len(f.sources))
	for _, src := range f.sources {
		if !src.deadline.After(target) {
			due = append(due, src)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	return due[0]
}
