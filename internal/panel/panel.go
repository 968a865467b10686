package panel

import (
	"fmt"
	"log/slog"

	"github.com/chess10kp/shellpanel/internal/config"
	"github.com/chess10kp/shellpanel/internal/loop"
)

// Panel is the process-wide context built once at startup: configuration,
// geometry and the two controllers that drive the surface.
type Panel struct {
	Config     config.Config
	Geometry   Geometry
	Visibility *VisibilityController
	Scheduler  *RefreshScheduler

	loop    loop.Loop
	surface Surface
	logger  *slog.Logger
}

// Options are the run-time choices that are not part of the config file.
type Options struct {
	Policy  ErrorPolicy
	OnFatal func(error)
	Logger  *slog.Logger
}

// New wires the controllers to surface. cfg must already be validated.
func New(cfg config.Config, geom Geometry, surface Surface, l loop.Loop, runner Runner, opts Options) (*Panel, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	command, err := cfg.ExpandedCommand()
	if err != nil {
		return nil, err
	}

	scheduler, err := NewRefreshScheduler(l, runner, surface, SchedulerOptions{
		Command:  command,
		Interval: cfg.PollInterval(),
		Policy:   opts.Policy,
		OnFatal:  opts.OnFatal,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Panel{
		Config:     cfg,
		Geometry:   geom,
		Visibility: NewVisibilityController(l, surface, geom, cfg.HideDelay(), logger),
		Scheduler:  scheduler,
		loop:       l,
		surface:    surface,
		logger:     logger,
	}, nil
}

// Start places the panel at the bottom of the screen with empty text and
// starts polling. Must run on the loop.
func (p *Panel) Start() error {
	p.surface.SetText("")
	p.surface.SetPosition(0, p.Geometry.VisibleY())

	p.logger.Info("trying to run command", "command", p.Scheduler.command)
	if err := p.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Stop halts polling and drops a pending hide.
func (p *Panel) Stop() {
	p.Scheduler.Stop()
	p.Visibility.Stop()
}
