// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError is a failed fetch from a reply or title source.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes fetch failures.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeStatus
	ErrTypeInvalidResponse
	ErrTypeTimeout
	ErrTypeCircuitOpen
	ErrTypeBlocked
)

// String returns a short label used in logs.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeStatus:
		return "status"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeCircuitOpen:
		return "circuit_open"
	case ErrTypeBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrTimeout     = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrCircuitOpen = &ClientError{Type: ErrTypeCircuitOpen, Message: "backend temporarily unavailable"}
	ErrNoSource    = &ClientError{Type: ErrTypeBlocked, Message: "no reply source configured"}
)

// IsFetchFailure reports whether err came from a reply or title source.
func IsFetchFailure(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr)
}

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsCircuitOpen reports whether err was a fast failure from an open breaker.
func IsCircuitOpen(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr) && clientErr.Type == ErrTypeCircuitOpen
}

// errorType returns the ErrorType of err, or ErrTypeUnknown.
func errorType(err error) ErrorType {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	return ErrTypeUnknown
}

// transportError classifies an error from an HTTP round trip.
func transportError(ctx context.Context, err error) *ClientError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "backend unreachable", Cause: err}
}
