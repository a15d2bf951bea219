// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/cortex/internal/app"
	"github.com/jeranaias/cortex/internal/config"
	"github.com/jeranaias/cortex/internal/export"
	"github.com/jeranaias/cortex/internal/model"
	"github.com/jeranaias/cortex/internal/util"
)

const chatHelp = `Commands:
  /new             start a new chat
  /list            list chats, most recent first
  /switch <n>      switch to chat n from /list
  /delete          delete the current chat
  /regen           regenerate the last reply
  /models          list models
  /use <id>        select a model
  /download <id>   download a model
  /export [md|json] save the current chat to a file
  /help            show this help
  /quit            exit
Anything else is sent as a message.`

func newChatCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			a := e.newApp(true)
			defer a.Close()

			line := liner.NewLiner()
			line.SetCtrlCAborts(true)
			history := historyPath()
			loadHistory(line, history)
			defer func() {
				saveHistory(line, history, e.logger)
				line.Close()
			}()

			out := cmd.OutOrStdout()
			r := newREPL(a, line, out, newRenderer(out, e.cfg.General.Theme))
			return r.run(cmd.Context())
		},
	}
}

// =============================================================================
// HISTORY
// =============================================================================

func historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat_history")
}

func loadHistory(line *liner.State, path string) {
	if f, err := os.Open(path); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
}

// saveHistory writes input history with owner-only permissions.
func saveHistory(line *liner.State, path string, logger *zap.Logger) {
	var buf bytes.Buffer
	if _, err := line.WriteHistory(&buf); err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		logger.Debug("HISTORY_SAVE_FAILED", zap.Error(err))
		return
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		logger.Debug("HISTORY_SAVE_FAILED", zap.Error(err))
	}
}

// =============================================================================
// REPL
// =============================================================================

// lineReader is the part of liner.State the REPL needs.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

type repl struct {
	app    *app.App
	in     lineReader
	out    io.Writer
	render *renderer

	// listed holds conversation IDs in the order /list printed them
	listed []string

	// exportDir receives /export files
	exportDir string
}

func newREPL(a *app.App, in lineReader, out io.Writer, render *renderer) *repl {
	return &repl{app: a, in: in, out: out, render: render, exportDir: "."}
}

// run reads lines until /quit, EOF or Ctrl+C at the prompt.
func (r *repl) run(ctx context.Context) error {
	r.printBanner()
	for {
		input, err := r.in.Prompt("cortex> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.in.AppendHistory(input)

		if r.handle(ctx, input) {
			return nil
		}
	}
}

func (r *repl) printBanner() {
	fmt.Fprintln(r.out, "Cortex chat. Type /help for commands.")
	if conv, ok := r.app.Active(); ok {
		fmt.Fprintf(r.out, "Current chat: %s\n", conv.Title)
	}
}

// handle processes one line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, input string) bool {
	if !strings.HasPrefix(input, "/") {
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return true
		}
		r.send(ctx, input)
		return false
	}

	fields := strings.Fields(input)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "/quit", "/exit", "/q":
		return true
	case "/help", "/?":
		fmt.Fprintln(r.out, chatHelp)
	case "/new":
		conv := r.app.NewChat()
		fmt.Fprintf(r.out, "Started %q.\n", conv.Title)
	case "/list":
		r.list()
	case "/switch":
		r.switchTo(args)
	case "/delete":
		r.deleteActive()
	case "/regen":
		r.regenerate(ctx)
	case "/models":
		selected, _ := r.app.SelectedModel()
		printModels(r.out, r.app.Models("", ""), selected.ID)
	case "/use":
		if len(args) != 1 {
			fmt.Fprintln(r.out, "Usage: /use <model-id>")
			break
		}
		if !r.app.SelectModel(args[0]) {
			fmt.Fprintf(r.out, "Unknown model %q.\n", args[0])
			break
		}
		m, _ := r.app.Model(args[0])
		fmt.Fprintf(r.out, "Using %s.\n", m.Name)
	case "/download":
		if len(args) != 1 {
			fmt.Fprintln(r.out, "Usage: /download <model-id>")
			break
		}
		if err := r.app.DownloadModel(args[0]); err != nil {
			fmt.Fprintf(r.out, "Cannot download %s: %v\n", args[0], err)
			break
		}
		fmt.Fprintf(r.out, "Downloading %s...\n", args[0])
	case "/export":
		format := ""
		if len(args) > 0 {
			format = args[0]
		}
		r.exportActive(format)
	default:
		fmt.Fprintf(r.out, "Unknown command %s. Type /help.\n", cmd)
	}
	return false
}

func (r *repl) list() {
	convs := r.app.Conversations()
	if len(convs) == 0 {
		fmt.Fprintln(r.out, "No chats. Type a message or /new.")
		r.listed = nil
		return
	}

	active := r.app.ActiveID()
	r.listed = r.listed[:0]
	for i, c := range convs {
		mark := " "
		if c.ID == active {
			mark = "*"
		}
		fmt.Fprintf(r.out, "%s %2d. %-40s %3d msgs  %s\n",
			mark, i+1, util.FitWidth(c.Title, 40), c.MessageCount(),
			c.LastActivity.Format("Jan 2 15:04"))
		r.listed = append(r.listed, c.ID)
	}
}

func (r *repl) switchTo(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(r.out, "Usage: /switch <n>")
		return
	}
	if len(r.listed) == 0 {
		for _, c := range r.app.Conversations() {
			r.listed = append(r.listed, c.ID)
		}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(r.listed) {
		fmt.Fprintf(r.out, "No chat %s. Use /list.\n", args[0])
		return
	}
	if !r.app.SelectChat(r.listed[n-1]) {
		fmt.Fprintln(r.out, "That chat no longer exists.")
		return
	}

	conv, _ := r.app.Active()
	fmt.Fprintf(r.out, "Switched to %q.\n", conv.Title)
	for _, m := range conv.Messages {
		fmt.Fprintf(r.out, "  %s: %s\n", m.Role.DisplayName(), m.Preview(70))
	}
}

func (r *repl) deleteActive() {
	conv, ok := r.app.Active()
	if !ok {
		fmt.Fprintln(r.out, "No chat selected.")
		return
	}
	r.app.DeleteChat(conv.ID)
	fmt.Fprintf(r.out, "Deleted %q.\n", conv.Title)
	if next, ok := r.app.Active(); ok {
		fmt.Fprintf(r.out, "Current chat: %s\n", next.Title)
	}
}

func (r *repl) exportActive(format string) {
	conv, ok := r.app.Active()
	if !ok {
		fmt.Fprintln(r.out, "No chat selected.")
		return
	}

	opts := export.DefaultOptions()
	if m, ok := r.app.SelectedModel(); ok {
		opts.Model = m.Name
	}
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		fmt.Fprintf(r.out, "Cannot export: %v\n", err)
		return
	}

	now := time.Now()
	data, err := exp.Export(conv, now)
	if err != nil {
		fmt.Fprintf(r.out, "Cannot export: %v\n", err)
		return
	}
	path := filepath.Join(r.exportDir, export.Filename(conv, exp, now))
	if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(r.out, "Cannot export: %v\n", err)
		return
	}
	fmt.Fprintf(r.out, "Exported to %s\n", path)
}

func (r *repl) send(ctx context.Context, text string) {
	convID := r.app.ActiveID()
	if convID == "" {
		convID = r.app.NewChat().ID
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := r.app.SendMessage(ctx, convID, text)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	r.showResult(res)
}

func (r *repl) regenerate(ctx context.Context) {
	conv, ok := r.app.Active()
	if !ok {
		fmt.Fprintln(r.out, "No chat selected.")
		return
	}
	last, ok := conv.LastMessage()
	if !ok || last.Role != model.RoleAssistant {
		fmt.Fprintln(r.out, "Nothing to regenerate.")
		return
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := r.app.Regenerate(ctx, conv.ID, last.ID)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	if res.NoOp {
		fmt.Fprintln(r.out, "Nothing to regenerate.")
		return
	}
	r.showResult(res)
}

func (r *repl) showResult(res app.Result) {
	if res.Discarded || res.Assistant == nil {
		fmt.Fprintln(r.out, "The chat was deleted before the reply arrived.")
		return
	}
	r.render.Reply(res.Assistant.Content)
	if res.Degraded {
		fmt.Fprintln(r.out, "(backend unavailable, showing an offline reply)")
	}
}
