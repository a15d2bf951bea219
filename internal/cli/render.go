// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/jeranaias/cortex/internal/config"
)

const (
	// DefaultTerminalWidth is used when the width cannot be detected.
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the narrowest wrap width.
	MinTerminalWidth = 40
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or DefaultTerminalWidth.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return max(width, MinTerminalWidth)
}

// renderer prints assistant replies. Markdown is rendered with glamour on a
// terminal and written verbatim otherwise, so piped output stays clean.
type renderer struct {
	out io.Writer
	md  *glamour.TermRenderer
}

func newRenderer(out io.Writer, theme string) *renderer {
	r := &renderer{out: out}
	if !isTerminal(out) {
		return r
	}

	style := glamour.WithAutoStyle()
	if t, err := config.ParseTheme(theme); err == nil && t != config.ThemeAuto {
		style = glamour.WithStandardStyle(string(t))
	}
	md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(terminalWidth(out)-2))
	if err == nil {
		r.md = md
	}
	return r
}

// Reply writes one assistant reply.
func (r *renderer) Reply(text string) {
	if r.md != nil {
		if rendered, err := r.md.Render(text); err == nil {
			io.WriteString(r.out, rendered)
			return
		}
	}
	io.WriteString(r.out, text)
	if !strings.HasSuffix(text, "\n") {
		io.WriteString(r.out, "\n")
	}
}
