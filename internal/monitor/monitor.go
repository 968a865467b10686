// Package monitor finds the primary output when the windowing toolkit
// cannot name one.
//
// GDK on Wayland frequently reports no primary monitor. Under sway the
// compositor still knows, so its IPC socket is asked instead.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joshuarubin/go-sway"
)

var (
	ErrNoPrimaryMonitor = errors.New("could not determine primary monitor")
	ErrNoSway           = errors.New("not running under sway")
)

// Size is a monitor's pixel dimensions.
type Size struct {
	Name   string
	Width  int
	Height int
}

// SwayPrimary asks sway for the primary output, falling back to the first
// active one.
func SwayPrimary(ctx context.Context) (Size, error) {
	if os.Getenv("SWAYSOCK") == "" {
		return Size{}, ErrNoSway
	}

	client, err := sway.New(ctx)
	if err != nil {
		return Size{}, fmt.Errorf("failed to connect to sway: %w", err)
	}

	outputs, err := client.GetOutputs(ctx)
	if err != nil {
		return Size{}, fmt.Errorf("failed to list sway outputs: %w", err)
	}

	return pickOutput(outputs)
}

func pickOutput(outputs []sway.Output) (Size, error) {
	var fallback *sway.Output
	for i := range outputs {
		out := &outputs[i]
		if !out.Active {
			continue
		}
		if out.Primary {
			return sizeOf(out), nil
		}
		if fallback == nil {
			fallback = out
		}
	}
	if fallback == nil {
		return Size{}, ErrNoPrimaryMonitor
	}
	return sizeOf(fallback), nil
}

func sizeOf(out *sway.Output) Size {
	return Size{
		Name:   out.Name,
		Width:  int(out.Rect.Width),
		Height: int(out.Rect.Height),
	}
}
