// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders a conversation as a downloadable document.
//
// # Key Types
//
//   - Exporter: renders a conversation in one format
//   - Options: metadata and timestamp switches
//
// # Supported Formats
//
//   - Markdown: YAML frontmatter followed by the transcript
//   - JSON: the conversation as served by the API
//
// # Usage
//
//	exp, err := export.ForFormat("markdown", export.DefaultOptions())
//	data, err := exp.Export(conv, time.Now())
//	name := export.Filename(conv, exp, time.Now())
package export
