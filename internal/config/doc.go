// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and the live settings
// holder for cortex.
//
// TOML is the primary format; JSON and YAML files are accepted too.
// Missing values are filled from defaults, environment variables override
// the file, and the result is validated before use.
//
// # Key Types
//
//   - Config: settings panel sections plus backend and log configuration
//   - Settings: validated, swappable configuration with change listeners
//   - ValidateErrors: per-field validation failures
//   - Theme: light, dark or auto
//
// # Configuration Precedence
//
//   - Environment variables (CORTEX_*)
//   - --config path, or ~/.cortex/config.toml, or ~/.cortex/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, path, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	settings := config.NewSettings(cfg)
//	if path != "" {
//	    _ = config.Watch(ctx, path, settings, logger)
//	}
package config
