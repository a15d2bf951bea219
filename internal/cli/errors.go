// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/cortex/internal/catalog"
	"github.com/jeranaias/cortex/internal/config"
	"github.com/jeranaias/cortex/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitNotFound     = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a failed CLI action with context.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError is a bad flag or argument.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return e.Reason
}

func usageErrorf(format string, args ...any) error {
	return &UsageError{Reason: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var usage *UsageError
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case config.IsValidationError(err):
		return ExitConfigError
	case errors.Is(err, session.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		return ExitNotFound
	default:
		return ExitGeneralError
	}
}
