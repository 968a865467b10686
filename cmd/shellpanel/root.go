// Package main provides the shellpanel entrypoint.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chess10kp/shellpanel/internal/config"
	"github.com/chess10kp/shellpanel/internal/gtkpanel"
	"github.com/chess10kp/shellpanel/internal/ipc"
	"github.com/chess10kp/shellpanel/internal/panel"
	"github.com/chess10kp/shellpanel/internal/runner"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

var (
	opts struct {
		configPath     string
		verbose        bool
		failFast       bool
		commandTimeout time.Duration
		cssPath        string
		socketPath     string
		noSocket       bool
	}
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shellpanel",
	Short: "Auto-hiding bottom panel showing the output of a command",
	Long: `shellpanel is a thin always-on-top panel at the bottom of the primary
monitor. It runs a command periodically and shows its output. The panel
slides out of view when the pointer leaves it and comes back when the
pointer touches the bottom edge.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger()
	},
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "conf", "c", "",
		"Path to config file, must exist (default: "+config.DefaultPath+", created if missing)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	flags.BoolVar(&opts.failFast, "fail-fast", false,
		"Exit when the command fails instead of keeping the last output")
	flags.DurationVar(&opts.commandTimeout, "command-timeout", runner.DefaultTimeout,
		"Kill the command if it runs longer than this")
	flags.StringVar(&opts.cssPath, "css", "",
		"Path to a custom stylesheet")
	flags.StringVar(&opts.socketPath, "socket", ipc.DefaultSocketPath(),
		"Path to the control socket")
	flags.BoolVar(&opts.noSocket, "no-socket", false,
		"Do not listen on the control socket")
}

func setupLogger() {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// loadConfig reads an explicit --conf path, or the default path, which is
// created with defaults on first run.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	if opts.configPath != "" {
		path, err := config.ExpandPath(opts.configPath)
		if err != nil {
			return nil, "", err
		}
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	path, err := config.ExpandPath(config.DefaultPath)
	if err != nil {
		return nil, "", err
	}
	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		return nil, "", err
	}
	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to '%s'\n", path)
	}
	return cfg, path, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Debug("loaded config", "path", path, "cmd", cfg.Cmd, "hide_delay_ms", cfg.HideDelayMs, "timeout_s", cfg.TimeoutS)

	policy := panel.PolicyKeepLastGood
	if opts.failFast {
		policy = panel.PolicyFailFast
	}

	socketPath := opts.socketPath
	if opts.noSocket {
		socketPath = ""
	}

	app, err := gtkpanel.NewApp(gtkpanel.Options{
		Config:         *cfg,
		ConfigPath:     path,
		Policy:         policy,
		CommandTimeout: opts.commandTimeout,
		CSSPath:        opts.cssPath,
		SocketPath:     socketPath,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	// GTK must not see our flags.
	return app.Run(os.Args[:1])
}
