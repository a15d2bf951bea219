// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/cortex/internal/telemetry"
	"github.com/jeranaias/cortex/internal/util"
)

// ErrorReply is the assistant message shown when a reply cannot be fetched.
const ErrorReply = "Sorry, I encountered an error. Please try again."

// TitleLength is the fallback title length in characters.
const TitleLength = 40

// Fallback modes.
const (
	FallbackCanned = "canned"
	FallbackError  = "error"
)

// Responder turns a prompt into assistant text.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// Titler turns a first prompt into a conversation title.
type Titler interface {
	GenerateTitle(ctx context.Context, prompt string) (string, error)
}

// =============================================================================
// FETCHER
// =============================================================================

// Reply is the result of a fetch.
type Reply struct {
	Text string

	// Degraded is true when the text is a canned reply
	Degraded bool
}

// Fetcher answers prompts from a primary source, falling back to canned
// replies or an explicit failure when the primary fails.
type Fetcher struct {
	primary  Responder
	degraded *Degraded
	fallback string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *telemetry.Metrics
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFallback sets the failure behavior: FallbackCanned or FallbackError.
func WithFallback(mode string) FetcherOption {
	return func(f *Fetcher) {
		f.fallback = mode
	}
}

// WithTimeout bounds each primary call.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithDegraded sets the canned reply source.
func WithDegraded(d *Degraded) FetcherOption {
	return func(f *Fetcher) {
		if d != nil {
			f.degraded = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetrics records fetch outcomes.
func WithMetrics(m *telemetry.Metrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewFetcher creates a fetcher. A nil primary always falls back.
func NewFetcher(primary Responder, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		primary:  primary,
		degraded: NewDegraded(time.Second, 0),
		fallback: FallbackCanned,
		timeout:  30 * time.Second,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns assistant text for prompt. With FallbackCanned any primary
// failure yields a degraded reply; with FallbackError the failure is
// returned and the caller shows ErrorReply.
func (f *Fetcher) Fetch(ctx context.Context, prompt string) (Reply, error) {
	start := time.Now()

	text, err := f.callPrimary(ctx, prompt)
	if err == nil {
		f.metrics.ObserveFetch(telemetry.OutcomePrimary, time.Since(start))
		return Reply{Text: text}, nil
	}

	f.logger.Warn("FETCH_FAILED",
		zap.String("type", errorType(err).String()),
		zap.Error(err))

	if f.fallback != FallbackCanned || ctx.Err() != nil {
		f.metrics.ObserveFetch(telemetry.OutcomeFailed, time.Since(start))
		return Reply{}, err
	}

	text, derr := f.degraded.Respond(ctx, prompt)
	if derr != nil {
		f.metrics.ObserveFetch(telemetry.OutcomeFailed, time.Since(start))
		return Reply{}, derr
	}

	f.logger.Info("FETCH_FALLBACK", zap.Int("chars", len(text)))
	f.metrics.ObserveFetch(telemetry.OutcomeDegraded, time.Since(start))
	return Reply{Text: text, Degraded: true}, nil
}

func (f *Fetcher) callPrimary(ctx context.Context, prompt string) (string, error) {
	if f.primary == nil {
		return "", ErrNoSource
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	text, err := f.primary.Respond(ctx, prompt)
	if err != nil {
		if !IsFetchFailure(err) {
			err = transportError(ctx, err)
		}
		return "", err
	}
	return text, nil
}

// =============================================================================
// TITLE DERIVER
// =============================================================================

// TitleDeriver titles conversations from their first prompt.
type TitleDeriver struct {
	source  Titler
	timeout time.Duration
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

// NewTitleDeriver creates a deriver. A nil source always truncates.
func NewTitleDeriver(source Titler, timeout time.Duration, logger *zap.Logger, metrics *telemetry.Metrics) *TitleDeriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TitleDeriver{source: source, timeout: timeout, logger: logger, metrics: metrics}
}

// Derive returns a title for prompt. On any failure, or an empty title, it
// returns the first TitleLength characters of prompt unmodified.
func (t *TitleDeriver) Derive(ctx context.Context, prompt string) string {
	if t.source != nil {
		callCtx := ctx
		if t.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, t.timeout)
			defer cancel()
		}

		title, err := t.source.GenerateTitle(callCtx, prompt)
		title = strings.TrimSpace(title)
		if err == nil && title != "" {
			t.metrics.ObserveTitle(telemetry.TitleDerived)
			return title
		}
		t.logger.Debug("TITLE_FALLBACK", zap.Error(err))
	}

	t.metrics.ObserveTitle(telemetry.TitleTruncated)
	return FallbackTitle(prompt)
}

// FallbackTitle returns the first TitleLength characters of prompt.
func FallbackTitle(prompt string) string {
	return util.TruncateRunesNoEllipsis(prompt, TitleLength)
}
