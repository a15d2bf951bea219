// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/cortex/internal/config"
	"github.com/jeranaias/cortex/internal/server"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API for the browser UI",
		Long: `Serve the JSON API on 127.0.0.1. The config file is watched and
reloaded on change; settings written through the API are saved back to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			if port != 0 {
				e.cfg.Advanced.ServerPort = port
				if err := e.cfg.Validate(); err != nil {
					return err
				}
			}
			if !e.cfg.Advanced.EnableAPI {
				return &CommandError{Command: "serve", Action: "start",
					Err: errors.New("API server is disabled (advanced.enable_api = false)")}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, e)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default advanced.server_port)")
	return cmd
}

// serve runs the API until ctx is done, then shuts down gracefully.
func serve(ctx context.Context, opts *rootOptions, e *env) error {
	e.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := e.newApp(true)
	defer a.Close()

	if e.path != "" {
		if err := config.Watch(ctx, e.path, e.settings, e.logger); err != nil {
			e.logger.Warn("CONFIG_WATCH_FAILED", zap.Error(err))
		}
	}

	target, err := opts.targetPath(e.path)
	if err != nil {
		e.logger.Warn("CONFIG_PATH_UNAVAILABLE", zap.Error(err))
		target = ""
	}

	srv := server.New(a, server.Options{
		Port:       e.cfg.Advanced.ServerPort,
		Logger:     e.logger,
		Gatherer:   e.registry,
		ConfigPath: target,
		Version:    Version,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return &CommandError{Command: "serve", Action: "listen", Err: err}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.logger.Warn("SHUTDOWN_INCOMPLETE", zap.Error(err))
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	e.logger.Info("SERVER_STOPPED")
	return nil
}
