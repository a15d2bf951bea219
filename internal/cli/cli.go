// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/cortex/internal/app"
	"github.com/jeranaias/cortex/internal/config"
	"github.com/jeranaias/cortex/internal/logging"
	"github.com/jeranaias/cortex/internal/telemetry"
)

// Version information, set at build time with -ldflags.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	verbose    bool
}

// env is the loaded configuration and logger a command runs with.
type env struct {
	cfg      *config.Config
	settings *config.Settings
	path     string
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
}

// load reads the config named by --config, or the default locations.
func (o *rootOptions) load() (*env, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
		path = o.configPath
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	return &env{
		cfg:      cfg,
		settings: config.NewSettings(cfg),
		path:     path,
		logger:   logger,
		registry: registry,
		metrics:  telemetry.New(registry),
	}, nil
}

// newApp builds the application for e. The caller must Close it.
func (e *env) newApp(seeded bool) *app.App {
	return app.New(app.Options{
		Settings: e.settings,
		Logger:   e.logger,
		Metrics:  e.metrics,
		NoSeed:   !seeded,
	})
}

// NewRootCommand builds the cortex command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "cortex",
		Short: "Local AI assistant",
		Long: `Cortex is a local-first AI assistant. It keeps conversations in memory,
fetches replies from a local backend (or Gemini when cloud use is allowed)
and falls back to canned replies when the backend is unreachable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (.toml, .json, .yaml); default ~/.cortex/config.toml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCommand(opts),
		newChatCommand(opts),
		newAskCommand(opts),
		newModelsCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return run(NewRootCommand(), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cortex %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
