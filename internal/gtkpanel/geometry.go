package gtkpanel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gotk3/gotk3/gdk"

	"github.com/chess10kp/shellpanel/internal/monitor"
	"github.com/chess10kp/shellpanel/internal/panel"
)

const swayQueryTimeout = 2 * time.Second

// primaryGeometry sizes the panel from the primary monitor. GDK is asked
// first, then sway. Without a primary monitor startup fails.
func primaryGeometry(logger *slog.Logger) (panel.Geometry, error) {
	display, err := gdk.DisplayGetDefault()
	if err != nil {
		return panel.Geometry{}, fmt.Errorf("failed to get default display: %w", err)
	}

	gdkPrimary := func() (monitor.Size, bool) {
		mon, err := display.GetPrimaryMonitor()
		if err != nil || mon == nil {
			return monitor.Size{}, false
		}
		geo := mon.GetGeometry()
		return monitor.Size{Width: geo.GetWidth(), Height: geo.GetHeight()}, true
	}
	swayPrimary := func() (monitor.Size, error) {
		ctx, cancel := context.WithTimeout(context.Background(), swayQueryTimeout)
		defer cancel()
		return monitor.SwayPrimary(ctx)
	}

	return resolveGeometry(gdkPrimary, swayPrimary, logger)
}

func resolveGeometry(gdkPrimary func() (monitor.Size, bool), swayPrimary func() (monitor.Size, error), logger *slog.Logger) (panel.Geometry, error) {
	if size, ok := gdkPrimary(); ok {
		return panel.NewGeometry(size.Width, size.Height), nil
	}

	size, err := swayPrimary()
	if err == nil {
		logger.Debug("primary monitor from sway", "output", size.Name)
		return panel.NewGeometry(size.Width, size.Height), nil
	}
	if !errors.Is(err, monitor.ErrNoSway) {
		logger.Warn("failed to query sway outputs", "error", err)
	}

	return panel.Geometry{}, monitor.ErrNoPrimaryMonitor
}
