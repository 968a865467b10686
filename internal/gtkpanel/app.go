// Package gtkpanel runs the panel inside a GTK application: it owns the
// window, feeds GLib's main loop to the panel controllers and hosts the
// control socket.
package gtkpanel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gotk3/gotk3/glib"
	"github.com/gotk3/gotk3/gtk"

	"github.com/chess10kp/shellpanel/internal/config"
	"github.com/chess10kp/shellpanel/internal/ipc"
	"github.com/chess10kp/shellpanel/internal/loop"
	"github.com/chess10kp/shellpanel/internal/panel"
	"github.com/chess10kp/shellpanel/internal/runner"
)

// AppID is the GtkApplication identifier.
const AppID = "com.github.klingtnet.shellpanel"

const (
	watchdogInterval = 5 * time.Second
	watchdogGrace    = 2 * time.Second
)

var ErrApplicationFailed = errors.New("application exited with an error")

// Options configure an App.
type Options struct {
	Config config.Config
	// ConfigPath is watched for edits. Empty disables the watcher.
	ConfigPath     string
	Policy         panel.ErrorPolicy
	CommandTimeout time.Duration
	// CSSPath is an optional user stylesheet.
	CSSPath string
	// SocketPath is the control socket. Empty disables it.
	SocketPath string
	Logger     *slog.Logger
}

// App is the GTK host of a single panel.
type App struct {
	opts   Options
	logger *slog.Logger

	app     *gtk.Application
	window  *window
	panel   *panel.Panel
	server  *ipc.Server
	watcher *config.Watcher

	cancelWatchdog context.CancelFunc
	sigChan        chan os.Signal

	// err is the first fatal error; it decides the exit status.
	err error
}

// NewApp registers the GTK application. Nothing is shown until Run.
func NewApp(opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = runner.DefaultTimeout
	}

	gtkApp, err := gtk.ApplicationNew(AppID, glib.APPLICATION_FLAGS_NONE)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	a := &App{
		opts:    opts,
		logger:  opts.Logger.With("component", "app"),
		app:     gtkApp,
		sigChan: make(chan os.Signal, 1),
	}

	gtkApp.Connect("activate", a.activate)
	gtkApp.Connect("shutdown", a.shutdown)
	return a, nil
}

// Run blocks in the GTK main loop until the application quits.
func (a *App) Run(args []string) error {
	signal.Notify(a.sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer func() {
		signal.Stop(a.sigChan)
		close(a.sigChan)
	}()
	go func() {
		sig, ok := <-a.sigChan
		if !ok {
			return
		}
		a.logger.Info("received signal", "signal", sig)
		glib.IdleAdd(a.app.Quit)
	}()

	a.logger.Info("shellpanel starting")
	status := a.app.Run(args)

	if a.err != nil {
		return a.err
	}
	if status != 0 {
		return fmt.Errorf("%w: status %d", ErrApplicationFailed, status)
	}
	return nil
}

func (a *App) activate() {
	// A second activation of the unique application only re-shows it.
	if a.window != nil {
		a.window.win.Present()
		return
	}

	if err := a.build(); err != nil {
		a.fail(err)
		return
	}
	a.startServices()
}

func (a *App) build() error {
	setupStyles(a.opts.Logger)
	if a.opts.CSSPath != "" {
		if err := loadCustomCSS(a.opts.CSSPath); err != nil {
			return err
		}
	}

	geom, err := primaryGeometry(a.opts.Logger)
	if err != nil {
		return fmt.Errorf("failed to size panel: %w", err)
	}

	win, err := newWindow(geom, a.opts.Logger)
	if err != nil {
		return err
	}

	p, err := panel.New(a.opts.Config, geom, win, glibLoop{}, runner.New(a.opts.CommandTimeout, a.opts.Logger), panel.Options{
		Policy:  a.opts.Policy,
		OnFatal: a.fail,
		Logger:  a.opts.Logger,
	})
	if err != nil {
		win.destroy()
		return err
	}

	win.connectPointer(p.Visibility)
	a.app.AddWindow(win.win)
	win.show()

	a.window = win
	a.panel = p
	return p.Start()
}

// startServices brings up the optional helpers. Their failures are logged,
// the panel keeps running.
func (a *App) startServices() {
	if a.opts.SocketPath != "" {
		server := ipc.NewServer(a.opts.SocketPath, panel.NewController(a.panel), a.opts.Logger)
		if err := server.Start(); err != nil {
			a.logger.Warn("control socket disabled", "error", err)
		} else {
			a.server = server
		}
	}

	if a.opts.ConfigPath != "" {
		watcher, err := config.NewWatcher(a.opts.ConfigPath, func() {
			a.logger.Info("config file changed on disk, restart to apply", "path", a.opts.ConfigPath)
		}, a.opts.Logger)
		if err == nil {
			err = watcher.Start()
		}
		if err != nil {
			a.logger.Warn("config watcher disabled", "error", err)
		} else {
			a.watcher = watcher
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancelWatchdog = cancel
	go loop.Watch(ctx, glibLoop{}, watchdogInterval, watchdogGrace, nil, a.opts.Logger)
}

// fail records err and quits. Only the first error is kept.
func (a *App) fail(err error) {
	if a.err == nil {
		a.err = err
	}
	a.logger.Error("shutting down", "error", err)
	a.app.Quit()
}

func (a *App) shutdown() {
	if a.cancelWatchdog != nil {
		a.cancelWatchdog()
	}
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.logger.Warn("failed to stop control socket", "error", err)
		}
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("failed to stop config watcher", "error", err)
		}
	}
	if a.panel != nil {
		a.panel.Stop()
	}
	if a.window != nil {
		a.window.destroy()
	}
	a.logger.Info("shellpanel stopped")
}
