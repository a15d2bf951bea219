// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across cortex.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with an ellipsis
//   - TruncateRunesNoEllipsis: UTF-8 safe prefix of at most n runes
//   - FitWidth: terminal-width aware truncation for list rendering
//   - SingleLine: collapse newlines for one-line previews
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
package util
