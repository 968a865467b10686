package loop

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
)

// Watch pings l every interval from the calling goroutine and reports a stall
// when the ping is not serviced within grace. It blocks until ctx is done.
func Watch(ctx context.Context, l Loop, every, grace time.Duration, onStall func(time.Duration), logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "watchdog")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		logger.Debug("loop stats",
			"goroutines", runtime.NumGoroutine(),
			"alloc", humanize.Bytes(m.Alloc),
			"heap_objects", m.HeapObjects)

		done := make(chan struct{}, 1)
		l.IdleAdd(func() {
			done <- struct{}{}
		})

		select {
		case <-done:
		case <-ctx.Done():
			return
		case <-time.After(grace):
			logger.Warn("main loop appears to be blocked", "grace", grace)
			if onStall != nil {
				onStall(grace)
			}
		}
	}
}
