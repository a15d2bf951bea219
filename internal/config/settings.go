// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// =============================================================================
// THEME
// =============================================================================

// Theme is the UI color scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

// ParseTheme converts a settings value into a Theme.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	case ThemeAuto:
		return ThemeAuto, nil
	default:
		return "", fmt.Errorf("unknown theme %q", s)
	}
}

// ResolveTheme returns the concrete theme to render. Auto follows the
// system preference; unknown values render light.
func ResolveTheme(theme string, systemPrefersDark bool) Theme {
	t, err := ParseTheme(theme)
	if err != nil {
		return ThemeLight
	}
	if t == ThemeAuto {
		if systemPrefersDark {
			return ThemeDark
		}
		return ThemeLight
	}
	return t
}

// =============================================================================
// SETTINGS HOLDER
// =============================================================================

// Settings is the live, validated configuration shared by the service. It
// replaces the package-level global with an explicitly constructed value.
type Settings struct {
	mu        sync.RWMutex
	cfg       *Config
	listeners []func(*Config)

	// notifyMu orders listener delivery with the swaps that caused it
	notifyMu sync.Mutex
}

// NewSettings wraps cfg. A nil cfg starts from defaults.
func NewSettings(cfg *Config) *Settings {
	if cfg == nil {
		cfg = Default()
	}
	return &Settings{cfg: cfg.Clone()}
}

// Get returns a copy of the current configuration.
func (s *Settings) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Update validates cfg and makes it current. Invalid configurations are
// rejected with ValidateErrors and leave the settings unchanged.
func (s *Settings) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.swap(cfg.Clone())
	return nil
}

// Reset restores the defaults.
func (s *Settings) Reset() {
	s.swap(Default())
}

// Subscribe registers fn to run after every change. Listeners run outside
// the settings lock, in registration order, with their own copy. Changes are
// delivered one at a time in the order they were made, so the last config a
// listener sees is the current one.
func (s *Settings) Subscribe(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Settings) swap(cfg *Config) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.cfg = cfg
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg.Clone())
	}
}
