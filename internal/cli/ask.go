// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func newAskCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Ask a single question and print the reply",
		Example: `  cortex ask "What can you do?"
  cortex ask explain goroutines in one paragraph`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return usageErrorf("prompt is empty")
			}

			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			a := e.newApp(false)
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conv := a.NewChat()
			res, err := a.SendMessage(ctx, conv.ID, prompt)
			if err != nil {
				return &CommandError{Command: "ask", Action: "send", Err: err}
			}
			if res.Assistant == nil {
				return &CommandError{Command: "ask", Action: "send", Err: errors.New("no reply")}
			}

			newRenderer(cmd.OutOrStdout(), e.cfg.General.Theme).Reply(res.Assistant.Content)
			if res.Degraded {
				fmt.Fprintln(cmd.ErrOrStderr(), "(backend unavailable, showing an offline reply)")
			}
			if res.Failed {
				return &CommandError{Command: "ask", Action: "fetch", Err: errors.New("backend request failed")}
			}
			return nil
		},
	}
}
