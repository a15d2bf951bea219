// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads path into settings whenever it changes, until ctx is done.
// The parent directory is watched so atomic rename-on-save is seen. Files
// that fail to load or validate are logged and ignored.
func Watch(ctx context.Context, path string, settings *Settings, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()

		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce = time.After(reloadDebounce)
				}

			case <-debounce:
				debounce = nil
				cfg, err := LoadFromPath(abs)
				if err != nil {
					logger.Warn("CONFIG_RELOAD_FAILED", zap.String("path", abs), zap.Error(err))
					continue
				}
				if err := settings.Update(cfg); err != nil {
					logger.Warn("CONFIG_RELOAD_REJECTED", zap.String("path", abs), zap.Error(err))
					continue
				}
				logger.Info("CONFIG_RELOADED", zap.String("path", abs))

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("CONFIG_WATCH_ERROR", zap.Error(err))
			}
		}
	}()

	return nil
}
