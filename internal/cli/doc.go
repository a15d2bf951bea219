// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the cortex command line.
//
// # Commands
//
//   - serve: JSON API for the browser UI, with config hot reload
//   - chat: interactive session with slash commands
//   - ask: one-shot question
//   - models: model catalog
//   - config show|path|get|set|keys: configuration
//   - version
//
// Every command accepts --config to name a config file and --verbose for
// debug logging. Errors map to exit codes through ExitCode.
package cli
