// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/cortex/internal/config"
	"github.com/jeranaias/cortex/internal/offline"
	"github.com/jeranaias/cortex/internal/telemetry"
)

// blocked is a source that always fails, used when the configured backend
// is not allowed. Fetches then take the fallback path.
type blocked struct {
	err error
}

func (b blocked) Respond(context.Context, string) (string, error) {
	return "", &ClientError{Type: ErrTypeBlocked, Message: "backend blocked", Cause: b.err}
}

func (b blocked) GenerateTitle(context.Context, string) (string, error) {
	return "", &ClientError{Type: ErrTypeBlocked, Message: "backend blocked", Cause: b.err}
}

// Source describes which primary source a Pipeline uses.
type Source string

const (
	SourceBackend Source = "backend"
	SourceGemini  Source = "gemini"
	SourceBlocked Source = "blocked"
)

// Pipeline is the reply fetcher and title deriver built from one config.
type Pipeline struct {
	Fetcher *Fetcher
	Titles  *TitleDeriver
	Source  Source
}

// NewPipeline builds the fetch pipeline for cfg.
//
// With local mode off and a Google API key set, Gemini is the primary
// source. Otherwise the local backend is used; in local mode it must be on
// a loopback address. A backend the guard rejects is replaced by a source
// that always fails, so replies degrade instead of erroring at startup.
func NewPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *telemetry.Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := offline.New(cfg.Privacy.LocalMode)
	timeout := time.Duration(cfg.Backend.TimeoutSecs) * time.Second

	var (
		responder Responder
		titler    Titler
		source    Source
	)

	if guard.CheckCloudAllowed() == nil && cfg.APIKeys.Google != "" {
		gemini, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.APIKeys.Google,
			Model:       cfg.Backend.GeminiModel,
			Temperature: cfg.Advanced.Temperature,
			MaxTokens:   cfg.Advanced.MaxTokens,
		})
		if err == nil {
			responder, titler, source = gemini, gemini, SourceGemini
		} else {
			logger.Warn("GEMINI_UNAVAILABLE", zap.Error(err))
		}
	}

	if responder == nil {
		if err := guard.ValidateURL(cfg.Backend.URL); err != nil {
			logger.Warn("BACKEND_BLOCKED", zap.String("url", cfg.Backend.URL), zap.Error(err))
			b := blocked{err: err}
			responder, titler, source = b, b, SourceBlocked
		} else {
			backend := NewBackendClient(cfg.Backend.URL, 0)
			responder, titler, source = backend, backend, SourceBackend
		}
	}

	breaker := NewBreaker("chat-"+string(source), responder, BreakerConfig{
		MaxFailures: uint32(cfg.Backend.BreakerFailures),
		Timeout:     time.Duration(cfg.Backend.BreakerTimeoutSecs) * time.Second,
		OnStateChange: func(name, _, to string) {
			metrics.ObserveBreaker(name, to)
		},
	}, logger)

	fetcher := NewFetcher(breaker,
		WithFallback(cfg.Backend.Fallback),
		WithTimeout(timeout),
		WithDegraded(NewDegraded(time.Duration(cfg.Backend.MockDelayMs)*time.Millisecond, 0)),
		WithLogger(logger),
		WithMetrics(metrics))

	logger.Info("FETCH_PIPELINE",
		zap.String("source", string(source)),
		zap.String("fallback", cfg.Backend.Fallback),
		zap.Bool("local_mode", cfg.Privacy.LocalMode))

	return &Pipeline{
		Fetcher: fetcher,
		Titles:  NewTitleDeriver(titler, timeout, logger, metrics),
		Source:  source,
	}
}
