// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog implements the model hub: listing, searching, selecting and
// simulated downloads of catalog models.
package catalog

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/cortex/internal/model"
)

// DefaultDownloadDelay is how long a simulated download takes.
const DefaultDownloadDelay = 3 * time.Second

var (
	// ErrNotFound is returned for unknown model IDs.
	ErrNotFound = errors.New("model not found")

	// ErrNotDownloadable is returned when downloading a cloud model.
	ErrNotDownloadable = errors.New("model is served remotely and cannot be downloaded")
)

// timer is the part of *time.Timer the catalog needs.
type timer interface {
	Stop() bool
}

// afterFunc schedules f after d. Tests replace it to control completion.
type afterFunc func(d time.Duration, f func()) timer

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog holds the model list and the current selection.
type Catalog struct {
	mu sync.Mutex

	models   []model.ModelInfo
	selected string
	pending  map[string]timer
	closed   bool

	delay     time.Duration
	afterFunc afterFunc
	logger    *zap.Logger

	// Callbacks
	onInstalled func(id string)
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithDownloadDelay overrides DefaultDownloadDelay.
func WithDownloadDelay(d time.Duration) Option {
	return func(c *Catalog) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithInstalledCallback sets a function called, outside the lock, when a
// download completes.
func WithInstalledCallback(fn func(id string)) Option {
	return func(c *Catalog) {
		c.onInstalled = fn
	}
}

func withAfterFunc(fn afterFunc) Option {
	return func(c *Catalog) {
		c.afterFunc = fn
	}
}

// New creates a catalog from models. The model named by defaultID is
// selected if present, otherwise the first model.
func New(models []model.ModelInfo, defaultID string, opts ...Option) *Catalog {
	c := &Catalog{
		models:    append([]model.ModelInfo(nil), models...),
		pending:   make(map[string]timer),
		delay:     DefaultDownloadDelay,
		afterFunc: realAfterFunc,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.index(defaultID) >= 0 {
		c.selected = defaultID
	} else if len(c.models) > 0 {
		c.selected = c.models[0].ID
	}
	return c
}

// =============================================================================
// QUERIES
// =============================================================================

// List returns every model in catalog order.
func (c *Catalog) List() []model.ModelInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.ModelInfo(nil), c.models...)
}

// Get returns the model with the given ID.
func (c *Catalog) Get(id string) (model.ModelInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return model.ModelInfo{}, false
	}
	return c.models[i], true
}

// Search returns models whose name or description contains query, ignoring
// case. An empty query returns everything.
func (c *Catalog) Search(query string) []model.ModelInfo {
	return c.filter(func(m model.ModelInfo) bool { return m.Matches(query) })
}

// ByCategory returns the models in one category.
func (c *Catalog) ByCategory(cat model.Category) []model.ModelInfo {
	return c.filter(func(m model.ModelInfo) bool { return m.Category == cat })
}

// Installed returns the models available on this device.
func (c *Catalog) Installed() []model.ModelInfo {
	return c.filter(func(m model.ModelInfo) bool { return m.IsInstalled })
}

func (c *Catalog) filter(keep func(model.ModelInfo) bool) []model.ModelInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.ModelInfo, 0, len(c.models))
	for _, m := range c.models {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// Selected returns the selected model. It reports false only for an empty
// catalog.
func (c *Catalog) Selected() (model.ModelInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(c.selected)
	if i < 0 {
		return model.ModelInfo{}, false
	}
	return c.models[i], true
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Select makes id the selected model. Unknown IDs are ignored.
func (c *Catalog) Select(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index(id) < 0 {
		return false
	}
	c.selected = id
	return true
}

// Download marks the model as downloading and installs it after the
// download delay. Installed or in-progress models are left alone.
func (c *Catalog) Download(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return ErrNotFound
	}
	m := &c.models[i]
	if !m.Downloadable() {
		return ErrNotDownloadable
	}
	if m.IsInstalled || m.IsDownloading || c.closed {
		return nil
	}

	m.IsDownloading = true
	c.pending[id] = c.afterFunc(c.delay, func() { c.finish(id) })

	c.logger.Info("MODEL_DOWNLOAD_STARTED", zap.String("model_id", id), zap.Duration("delay", c.delay))
	return nil
}

func (c *Catalog) finish(id string) {
	c.mu.Lock()
	if _, ok := c.pending[id]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, id)

	i := c.index(id)
	if i >= 0 {
		c.models[i].IsDownloading = false
		c.models[i].IsInstalled = true
	}
	onInstalled := c.onInstalled
	c.mu.Unlock()

	c.logger.Info("MODEL_INSTALLED", zap.String("model_id", id))
	if i >= 0 && onInstalled != nil {
		onInstalled(id)
	}
}

// Pending returns the number of downloads in progress.
func (c *Catalog) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close stops pending download timers. Models caught mid-download stay
// marked as downloading.
func (c *Catalog) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for id, t := range c.pending {
		t.Stop()
		delete(c.pending, id)
	}
}

func (c *Catalog) index(id string) int {
	if id == "" {
		return -1
	}
	for i := range c.models {
		if c.models[i].ID == id {
			return i
		}
	}
	return -1
}
