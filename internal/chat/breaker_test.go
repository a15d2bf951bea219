// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterFailures(t *testing.T) {
	src := &stubSource{err: errDown}
	var transitions []string
	b := NewBreaker("test", src, BreakerConfig{
		MaxFailures:   2,
		Timeout:       time.Hour,
		OnStateChange: func(_, _, to string) { transitions = append(transitions, to) },
	}, nil)

	for i := 0; i < 2; i++ {
		_, err := b.Respond(context.Background(), "q")
		assert.ErrorIs(t, err, errDown)
	}
	assert.Equal(t, "open", b.State())
	assert.Equal(t, []string{"open"}, transitions)

	_, err := b.Respond(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, IsCircuitOpen(err))
	assert.Equal(t, int32(2), src.calls.Load(), "open circuit does not reach the source")
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	src := &stubSource{err: errDown}
	b := NewBreaker("test", src, BreakerConfig{MaxFailures: 1, Timeout: 20 * time.Millisecond}, nil)

	_, _ = b.Respond(context.Background(), "q")
	require.Equal(t, "open", b.State())

	time.Sleep(30 * time.Millisecond)
	src.err = nil
	src.text = "back"

	text, err := b.Respond(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "back", text)
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_CancelDoesNotTrip(t *testing.T) {
	b := NewBreaker("test", &stubSource{block: true}, BreakerConfig{MaxFailures: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Respond(ctx, "q")
	require.Error(t, err)
	assert.Equal(t, "closed", b.State())
}
