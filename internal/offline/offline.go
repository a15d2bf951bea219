// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNonLocalhost is returned for remote hosts while local mode is on.
	ErrNonLocalhost = errors.New("local mode: only localhost connections are allowed")

	// ErrCloudBlocked is returned when a cloud provider is used in local mode.
	ErrCloudBlocked = errors.New("local mode: cloud providers are disabled")

	// ErrTelemetryBlocked is returned when telemetry is attempted in local mode.
	ErrTelemetryBlocked = errors.New("local mode: telemetry is disabled")

	// ErrInvalidURLScheme is returned when a URL scheme is not http or https.
	ErrInvalidURLScheme = errors.New("only http and https schemes are allowed")

	// ErrInvalidURL is returned for URLs that cannot be parsed.
	ErrInvalidURL = errors.New("invalid URL")
)

// =============================================================================
// GUARD
// =============================================================================

// Guard enforces the privacy.local_mode setting. The zero value allows
// remote hosts but still rejects non-http schemes.
type Guard struct {
	LocalMode bool
}

// New returns a guard for the given local mode setting.
func New(localMode bool) Guard {
	return Guard{LocalMode: localMode}
}

// ValidateURL checks that rawURL is http(s) and, in local mode, points at a
// loopback host.
func (g Guard) ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}

	if g.LocalMode && !IsLocalhost(parsed.Hostname()) {
		return ErrNonLocalhost
	}
	return nil
}

// CheckCloudAllowed returns ErrCloudBlocked in local mode.
func (g Guard) CheckCloudAllowed() error {
	if g.LocalMode {
		return ErrCloudBlocked
	}
	return nil
}

// CheckTelemetryAllowed returns ErrTelemetryBlocked in local mode.
func (g Guard) CheckTelemetryAllowed() error {
	if g.LocalMode {
		return ErrTelemetryBlocked
	}
	return nil
}

// Badge returns "[LOCAL]" in local mode, "" otherwise.
func (g Guard) Badge() string {
	if g.LocalMode {
		return "[LOCAL]"
	}
	return ""
}

// IsLocalhost reports whether host refers to this machine. It accepts
// "localhost", the whole 127.0.0.0/8 range and IPv6 loopback, with or
// without a port.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
