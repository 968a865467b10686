package panel

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chess10kp/shellpanel/internal/ipc"
)

// ErrLoopUnresponsive is returned when the loop does not pick up a control
// command in time.
var ErrLoopUnresponsive = errors.New("main loop did not respond")

const defaultControlTimeout = 2 * time.Second

// Controller serves control socket commands. Handle is called from socket
// goroutines and hops onto the loop before touching the panel.
type Controller struct {
	panel   *Panel
	timeout time.Duration
}

// NewController creates a Controller for p.
func NewController(p *Panel) *Controller {
	return &Controller{panel: p, timeout: defaultControlTimeout}
}

type controlResult struct {
	reply string
	err   error
}

const (
	requestQueued int32 = iota
	requestRunning
	requestAbandoned
)

// Handle implements ipc.Handler. A command that times out is abandoned: it
// will not run when the loop eventually gets to it.
func (c *Controller) Handle(command string) (string, error) {
	var state atomic.Int32
	done := make(chan controlResult, 1)
	c.panel.loop.IdleAdd(func() {
		if !state.CompareAndSwap(requestQueued, requestRunning) {
			return
		}
		reply, err := c.dispatch(command)
		done <- controlResult{reply, err}
	})

	select {
	case res := <-done:
		return res.reply, res.err
	case <-time.After(c.timeout):
		if state.CompareAndSwap(requestQueued, requestAbandoned) {
			return "", ErrLoopUnresponsive
		}
		// Already dispatching; report what it did.
		res := <-done
		return res.reply, res.err
	}
}

func (c *Controller) dispatch(command string) (string, error) {
	p := c.panel
	switch command {
	case ipc.CmdRefresh:
		if !p.Scheduler.RefreshNow() {
			return "refresh already in flight", nil
		}
		return "refresh started", nil
	case ipc.CmdShow:
		p.Visibility.Show()
		return "", nil
	case ipc.CmdHide:
		p.Visibility.Hide()
		return "", nil
	case ipc.CmdStatus:
		return c.status(), nil
	default:
		return "", fmt.Errorf("%w: %q", ipc.ErrUnknownCommand, command)
	}
}

func (c *Controller) status() string {
	p := c.panel
	s := p.Scheduler

	updated := "never"
	if last := s.LastUpdate(); !last.IsZero() {
		updated = humanize.Time(last)
	}

	fields := []string{
		"state=" + p.Visibility.State().String(),
		fmt.Sprintf("text=%q", s.Text()),
		"updated=" + updated,
		"ticks=" + humanize.Comma(int64(s.Ticks())),
	}
	if err := s.LastError(); err != nil {
		fields = append(fields, fmt.Sprintf("error=%q", err.Error()))
	}
	return strings.Join(fields, " ")
}
