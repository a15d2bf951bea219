// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig configures the circuit breaker around a reply source.
type BreakerConfig struct {
	// MaxFailures is the consecutive failures that open the circuit
	MaxFailures uint32

	// Timeout is how long the circuit stays open before a probe
	Timeout time.Duration

	// OnStateChange is called on every transition
	OnStateChange func(name, from, to string)
}

// Breaker fails fast once the wrapped source has failed repeatedly, so an
// unreachable backend does not cost a full timeout per message.
type Breaker struct {
	inner Responder
	cb    *gobreaker.CircuitBreaker[string]
}

// NewBreaker wraps inner. Zero config values use 3 failures and 30s.
func NewBreaker(name string, inner Responder, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("BREAKER_STATE",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from.String(), to.String())
			}
		},
		// A caller giving up is not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Breaker{inner: inner, cb: cb}
}

// Respond calls the wrapped source through the breaker.
func (b *Breaker) Respond(ctx context.Context, prompt string) (string, error) {
	text, err := b.cb.Execute(func() (string, error) {
		return b.inner.Respond(ctx, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", &ClientError{Type: ErrTypeCircuitOpen, Message: "backend temporarily unavailable", Cause: err}
	}
	return text, err
}

// State returns the breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
