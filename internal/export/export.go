// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/cortex/internal/model"
	"github.com/jeranaias/cortex/internal/util"
)

// ErrUnsupportedFormat is returned by ForFormat for unknown names.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ErrEmptyConversation is returned when there is nothing to export.
var ErrEmptyConversation = errors.New("conversation has no messages")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a conversation in one format.
type Exporter interface {
	// Export renders conv. exportedAt is stamped into formats that carry it.
	Export(conv model.Conversation, exportedAt time.Time) ([]byte, error)

	// FileExtension returns the extension including the dot, e.g. ".md".
	FileExtension() string

	// MimeType returns the Content-Type of the rendered document.
	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds the frontmatter and session section.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool

	// Model names the model in the metadata ("" to omit).
	Model string
}

// DefaultOptions returns options with metadata and timestamps on.
func DefaultOptions() Options {
	return Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// ForFormat returns the exporter for a format name: markdown (md) or json.
func ForFormat(format string, opts Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Filename returns a safe file name for conv, e.g.
// "conversation_Python_Code_Review_20250101_150405.md".
func Filename(conv model.Conversation, exp Exporter, at time.Time) string {
	return fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(conv.Title),
		at.Format("20060102_150405"),
		exp.FileExtension())
}

// =============================================================================
// HELPERS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in file names on
// Windows or Unix, and caps the length at 50 runes.
func sanitizeFilename(s string) string {
	s = util.TruncateRunesNoEllipsis(strings.TrimSpace(s), 50)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "conversation"
	}
	return b.String()
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
