// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/cortex/internal/catalog"
	"github.com/jeranaias/cortex/internal/chat"
	"github.com/jeranaias/cortex/internal/config"
	"github.com/jeranaias/cortex/internal/model"
	"github.com/jeranaias/cortex/internal/seed"
	"github.com/jeranaias/cortex/internal/session"
	"github.com/jeranaias/cortex/internal/telemetry"
)

// ErrEmptyMessage is returned when a message is blank.
var ErrEmptyMessage = errors.New("message is empty")

// Options configures an App.
type Options struct {
	// Settings is the live configuration (default: built-in defaults)
	Settings *config.Settings

	Logger  *zap.Logger
	Metrics *telemetry.Metrics

	// Now is the clock (default: time.Now)
	Now func() time.Time

	// Pipeline replaces the config-built fetch pipeline. It is not rebuilt
	// on settings changes.
	Pipeline *chat.Pipeline

	// DownloadDelay overrides the simulated model download time
	DownloadDelay time.Duration

	// NoSeed starts with no conversations
	NoSeed bool
}

// Result describes the outcome of a send or regenerate.
type Result struct {
	User      *model.Message `json:"user,omitempty"`
	Assistant *model.Message `json:"assistant,omitempty"`

	// Degraded is true when the reply is a canned one
	Degraded bool `json:"degraded"`

	// Failed is true when the reply is ErrorReply
	Failed bool `json:"failed"`

	// Discarded is true when the conversation was deleted mid-fetch
	Discarded bool `json:"discarded"`

	// NoOp is true when a regenerate did not apply
	NoOp bool `json:"no_op"`
}

// =============================================================================
// APP
// =============================================================================

// App wires the conversation store, model catalog, settings and fetch
// pipeline together. It is the single owner of application state.
type App struct {
	store    *session.Store
	catalog  *catalog.Catalog
	settings *config.Settings
	logger   *zap.Logger
	metrics  *telemetry.Metrics

	mu       sync.RWMutex
	pipeline *chat.Pipeline
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an App seeded with the sample conversations and catalog.
func New(opts Options) *App {
	if opts.Settings == nil {
		opts.Settings = config.NewSettings(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	cfg := opts.Settings.Get()

	a := &App{
		settings: opts.Settings,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		ctx:      ctx,
		cancel:   cancel,
	}

	storeOpts := []session.Option{
		session.WithClock(opts.Now),
		session.WithLogger(opts.Logger),
	}
	if !opts.NoSeed {
		storeOpts = append(storeOpts, session.WithSeed(seed.Conversations(opts.Now())))
	}
	a.store = session.NewStore(storeOpts...)
	a.store.SetFirstMessageCallback(a.deriveTitle)

	catalogOpts := []catalog.Option{
		catalog.WithLogger(opts.Logger),
		catalog.WithInstalledCallback(func(string) {
			a.metrics.ObserveDownload("installed")
		}),
	}
	if opts.DownloadDelay > 0 {
		catalogOpts = append(catalogOpts, catalog.WithDownloadDelay(opts.DownloadDelay))
	}
	a.catalog = catalog.New(seed.Models(), cfg.General.DefaultModel, catalogOpts...)

	if opts.Pipeline != nil {
		p := *opts.Pipeline
		if p.Fetcher == nil {
			p.Fetcher = chat.NewFetcher(nil, chat.WithLogger(opts.Logger))
		}
		if p.Titles == nil {
			p.Titles = chat.NewTitleDeriver(nil, 0, opts.Logger, opts.Metrics)
		}
		a.pipeline = &p
	} else {
		a.pipeline = chat.NewPipeline(ctx, cfg, opts.Logger, opts.Metrics)
		opts.Settings.Subscribe(a.rebuildPipeline)
	}

	return a
}

func (a *App) rebuildPipeline(cfg *config.Config) {
	p := chat.NewPipeline(a.ctx, cfg, a.logger, a.metrics)
	a.mu.Lock()
	a.pipeline = p
	a.mu.Unlock()
}

func (a *App) currentPipeline() *chat.Pipeline {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pipeline
}

// Close cancels background title derivation, stops pending downloads and
// waits for background work to finish.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.catalog.Close()
	a.wg.Wait()
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// NewChat creates an empty conversation and makes it active.
func (a *App) NewChat() model.Conversation {
	return a.store.Create()
}

// SelectChat makes id the active conversation.
func (a *App) SelectChat(id string) bool {
	return a.store.Select(id)
}

// DeleteChat removes a conversation. Unknown IDs are ignored.
func (a *App) DeleteChat(id string) bool {
	return a.store.Delete(id)
}

// Conversations returns every conversation, most recently active first.
func (a *App) Conversations() []model.Conversation {
	return a.store.ListByActivity()
}

// Conversation returns one conversation.
func (a *App) Conversation(id string) (model.Conversation, bool) {
	return a.store.Get(id)
}

// Active returns the active conversation.
func (a *App) Active() (model.Conversation, bool) {
	return a.store.Active()
}

// ActiveID returns the active conversation ID, or "".
func (a *App) ActiveID() string {
	return a.store.ActiveID()
}

// =============================================================================
// MESSAGING
// =============================================================================

// SendMessage appends the user's message, fetches a reply and appends it.
// The user message is committed before the fetch starts. A fetch failure
// becomes the ErrorReply assistant message. If the conversation is deleted
// while the fetch runs, the reply is discarded.
func (a *App) SendMessage(ctx context.Context, convID, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyMessage
	}

	if err := a.store.BeginResponse(convID); err != nil {
		return Result{}, err
	}
	defer a.store.EndResponse(convID)

	user, err := a.store.AppendUserMessage(convID, text)
	if err != nil {
		return Result{}, err
	}

	res := a.respond(ctx, convID, text)
	res.User = &user
	return res, nil
}

// Regenerate replaces the assistant reply messageID and everything after
// it with a fresh reply to the preceding user message. It is a no-op when
// the message is missing, first, or not preceded by a user message.
func (a *App) Regenerate(ctx context.Context, convID, messageID string) (Result, error) {
	if err := a.store.BeginResponse(convID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Result{NoOp: true}, nil
		}
		return Result{}, err
	}
	defer a.store.EndResponse(convID)

	prompt, ok := a.store.RegenerateFrom(convID, messageID)
	if !ok {
		return Result{NoOp: true}, nil
	}

	return a.respond(ctx, convID, prompt), nil
}

// respond fetches a reply for prompt and appends it to convID.
func (a *App) respond(ctx context.Context, convID, prompt string) Result {
	var res Result

	reply, err := a.currentPipeline().Fetcher.Fetch(ctx, prompt)
	text := reply.Text
	if err != nil {
		text = chat.ErrorReply
		res.Failed = true
	}
	res.Degraded = reply.Degraded

	msg, err := a.store.AppendAssistantMessage(convID, text)
	if err != nil {
		a.logger.Info("REPLY_DISCARDED",
			zap.String("conversation_id", convID),
			zap.Error(err))
		res.Discarded = true
		return res
	}
	res.Assistant = &msg
	return res
}

// deriveTitle runs title derivation in the background. It is the store's
// first-message callback.
func (a *App) deriveTitle(convID, prompt string) {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return
	}
	titles := a.pipeline.Titles
	a.wg.Add(1)
	a.mu.RUnlock()

	go func() {
		defer a.wg.Done()

		title := titles.Derive(a.ctx, prompt)
		if a.ctx.Err() != nil {
			return
		}
		if !a.store.SetTitle(convID, title) {
			a.logger.Debug("TITLE_DISCARDED", zap.String("conversation_id", convID))
		}
	}()
}

// =============================================================================
// MODELS & SETTINGS
// =============================================================================

// Models lists catalog models, optionally filtered by a search query and a
// category ("" for all).
func (a *App) Models(query string, category model.Category) []model.ModelInfo {
	models := a.catalog.Search(query)
	if category == "" {
		return models
	}
	out := models[:0]
	for _, m := range models {
		if m.Category == category {
			out = append(out, m)
		}
	}
	return out
}

// Model returns one catalog model.
func (a *App) Model(id string) (model.ModelInfo, bool) {
	return a.catalog.Get(id)
}

// SelectedModel returns the selected model.
func (a *App) SelectedModel() (model.ModelInfo, bool) {
	return a.catalog.Selected()
}

// SelectModel selects a model. Unknown IDs are ignored.
func (a *App) SelectModel(id string) bool {
	return a.catalog.Select(id)
}

// DownloadModel starts a simulated download.
func (a *App) DownloadModel(id string) error {
	before, _ := a.catalog.Get(id)
	if err := a.catalog.Download(id); err != nil {
		return err
	}
	if after, _ := a.catalog.Get(id); after.IsDownloading && !before.IsDownloading {
		a.metrics.ObserveDownload("started")
	}
	return nil
}

// Settings returns the live settings.
func (a *App) Settings() *config.Settings {
	return a.settings
}

// Metrics returns the metrics sink, which may be nil.
func (a *App) Metrics() *telemetry.Metrics {
	return a.metrics
}

// Source reports where replies currently come from.
func (a *App) Source() chat.Source {
	return a.currentPipeline().Source
}
