// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"testing"
)

// =============================================================================
// LOCALHOST DETECTION TESTS
// =============================================================================

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host   string
		expect bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"127.0.0.1", true},
		{"127.0.0.1:8000", true},
		{"127.1.2.3", true},
		{"::1", true},
		{"[::1]", true},
		{"[::1]:8000", true},
		{"0:0:0:0:0:0:0:1", true},

		{"google.com", false},
		{"192.168.1.1", false},
		{"10.0.0.1", false},
		{"0.0.0.0", false},
		{"localhost.evil.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := IsLocalhost(tt.host); got != tt.expect {
				t.Errorf("IsLocalhost(%q) = %v, want %v", tt.host, got, tt.expect)
			}
		})
	}
}

// =============================================================================
// GUARD TESTS
// =============================================================================

func TestGuard_ValidateURL(t *testing.T) {
	tests := []struct {
		name      string
		localMode bool
		url       string
		wantErr   error
	}{
		{"local backend in local mode", true, "http://localhost:8000", nil},
		{"loopback ip in local mode", true, "http://127.0.0.1:8000/api", nil},
		{"remote in local mode", true, "https://api.example.com", ErrNonLocalhost},
		{"remote with local mode off", false, "https://api.example.com", nil},
		{"file scheme", false, "file:///etc/passwd", ErrInvalidURLScheme},
		{"javascript scheme", true, "javascript:alert(1)", ErrInvalidURLScheme},
		{"unparseable", false, "http://[::1", ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.localMode).ValidateURL(tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestGuard_FeatureChecks(t *testing.T) {
	local := New(true)
	if !errors.Is(local.CheckCloudAllowed(), ErrCloudBlocked) {
		t.Error("cloud should be blocked in local mode")
	}
	if !errors.Is(local.CheckTelemetryAllowed(), ErrTelemetryBlocked) {
		t.Error("telemetry should be blocked in local mode")
	}
	if local.Badge() != "[LOCAL]" {
		t.Errorf("Badge() = %q", local.Badge())
	}

	var open Guard
	if err := open.CheckCloudAllowed(); err != nil {
		t.Errorf("zero Guard blocked cloud: %v", err)
	}
	if err := open.CheckTelemetryAllowed(); err != nil {
		t.Errorf("zero Guard blocked telemetry: %v", err)
	}
	if open.Badge() != "" {
		t.Errorf("Badge() = %q, want empty", open.Badge())
	}
}
