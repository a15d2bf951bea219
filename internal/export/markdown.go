// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/cortex/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders a conversation as a Markdown transcript.
type MarkdownExporter struct {
	options Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts Options) *MarkdownExporter {
	return &MarkdownExporter{options: opts}
}

// frontmatter is the YAML header of a Markdown export.
type frontmatter struct {
	Title     string `yaml:"title"`
	Model     string `yaml:"model,omitempty"`
	Updated   string `yaml:"updated"`
	Messages  int    `yaml:"messages"`
	Exported  string `yaml:"exported"`
	Generator string `yaml:"generator"`
}

// Export renders conv. Message content is written as-is since replies are
// already Markdown.
func (e *MarkdownExporter) Export(conv model.Conversation, exportedAt time.Time) ([]byte, error) {
	if len(conv.Messages) == 0 {
		return nil, ErrEmptyConversation
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		header, err := yaml.Marshal(frontmatter{
			Title:     conv.Title,
			Model:     e.options.Model,
			Updated:   conv.LastActivity.Format(time.RFC3339),
			Messages:  len(conv.Messages),
			Exported:  exportedAt.Format(time.RFC3339),
			Generator: "cortex",
		})
		if err != nil {
			return nil, fmt.Errorf("encode frontmatter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(header)
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.Title))

	if e.options.IncludeMetadata {
		sb.WriteString("## Session Information\n\n")
		if e.options.Model != "" {
			fmt.Fprintf(&sb, "- **Model**: %s\n", e.options.Model)
		}
		fmt.Fprintf(&sb, "- **Last Activity**: %s\n", formatTimestamp(conv.LastActivity))
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(conv.Messages))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")
	for i, msg := range conv.Messages {
		if e.options.IncludeTimestamps {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", roleLabel(msg.Role), formatShortTimestamp(msg.Timestamp))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", roleLabel(msg.Role))
		}
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")

		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	fmt.Fprintf(&sb, "---\n\n*Exported from Cortex on %s*\n", exportedAt.Format("January 2, 2006 at 3:04 PM"))
	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) FileExtension() string { return ".md" }

func (e *MarkdownExporter) MimeType() string { return "text/markdown; charset=utf-8" }

func roleLabel(role model.Role) string {
	if role.Valid() {
		return role.DisplayName()
	}
	return "Unknown"
}

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	return strings.NewReplacer(
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
	).Replace(s)
}
