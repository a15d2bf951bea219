// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cortex/internal/telemetry"
)

// stubSource returns fixed results and counts calls.
type stubSource struct {
	text  string
	title string
	err   error
	calls atomic.Int32
	block bool
}

func (s *stubSource) Respond(ctx context.Context, prompt string) (string, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.text, s.err
}

func (s *stubSource) GenerateTitle(ctx context.Context, prompt string) (string, error) {
	s.calls.Add(1)
	return s.title, s.err
}

var errDown = &ClientError{Type: ErrTypeConnection, Message: "backend unreachable"}

func instantDegraded() *Degraded {
	d := NewDegraded(0, 0)
	d.pick = func(int) int { return 1 }
	return d
}

// =============================================================================
// FETCHER TESTS
// =============================================================================

func TestFetcher_PrimarySuccess(t *testing.T) {
	metrics := telemetry.New(prometheus.NewRegistry())
	f := NewFetcher(&stubSource{text: "real reply"}, WithDegraded(instantDegraded()), WithMetrics(metrics))

	reply, err := f.Fetch(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: "real reply"}, reply)
	assert.Equal(t, 1, metrics.Snapshot().Fetches[telemetry.OutcomePrimary])
}

func TestFetcher_CannedFallback(t *testing.T) {
	metrics := telemetry.New(prometheus.NewRegistry())
	f := NewFetcher(&stubSource{err: errDown}, WithDegraded(instantDegraded()), WithMetrics(metrics))

	reply, err := f.Fetch(context.Background(), "Tell me about the weather")
	require.NoError(t, err)
	assert.True(t, reply.Degraded)
	assert.Equal(t, cannedReplies[1], reply.Text)
	assert.Equal(t, 1, metrics.Snapshot().Fetches[telemetry.OutcomeDegraded])
}

func TestFetcher_CodePromptFallback(t *testing.T) {
	f := NewFetcher(&stubSource{err: errDown}, WithDegraded(instantDegraded()))

	for _, prompt := range []string{"Can you review my CODE?", "I love Programming", "decode this"} {
		reply, err := f.Fetch(context.Background(), prompt)
		require.NoError(t, err)
		assert.Equal(t, CodeReply(), reply.Text, prompt)
	}
}

func TestFetcher_ErrorMode(t *testing.T) {
	metrics := telemetry.New(prometheus.NewRegistry())
	f := NewFetcher(&stubSource{err: errDown}, WithFallback(FallbackError), WithMetrics(metrics))

	_, err := f.Fetch(context.Background(), "Hello")
	require.Error(t, err)
	assert.True(t, IsFetchFailure(err))
	assert.Equal(t, 1, metrics.Snapshot().Fetches[telemetry.OutcomeFailed])
}

func TestFetcher_NilPrimary(t *testing.T) {
	f := NewFetcher(nil, WithDegraded(instantDegraded()))
	reply, err := f.Fetch(context.Background(), "Hello")
	require.NoError(t, err)
	assert.True(t, reply.Degraded)

	f = NewFetcher(nil, WithFallback(FallbackError))
	_, err = f.Fetch(context.Background(), "Hello")
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestFetcher_TimeoutFallsBack(t *testing.T) {
	src := &stubSource{block: true}
	f := NewFetcher(src, WithTimeout(20*time.Millisecond), WithDegraded(instantDegraded()))

	reply, err := f.Fetch(context.Background(), "Hello")
	require.NoError(t, err)
	assert.True(t, reply.Degraded)
}

func TestFetcher_PlainErrorsAreClassified(t *testing.T) {
	f := NewFetcher(&stubSource{err: errors.New("boom")}, WithFallback(FallbackError))
	_, err := f.Fetch(context.Background(), "Hello")
	require.Error(t, err)
	assert.True(t, IsFetchFailure(err))
}

func TestFetcher_CallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(&stubSource{block: true}, WithDegraded(NewDegraded(time.Hour, 0)))
	_, err := f.Fetch(ctx, "Hello")
	assert.Error(t, err, "a cancelled caller gets an error, not a canned reply")
}

// =============================================================================
// DEGRADED TESTS
// =============================================================================

func TestDegraded_UniformChoice(t *testing.T) {
	d := NewDegraded(0, 0)
	seen := make(map[string]bool)
	for i := 0; i < 300; i++ {
		text, err := d.Respond(context.Background(), "hello")
		require.NoError(t, err)
		seen[text] = true
	}
	for _, r := range CannedReplies() {
		assert.True(t, seen[r], "reply never chosen: %q", r[:20])
	}
	assert.False(t, seen[CodeReply()])
}

func TestDegraded_RespectsDelay(t *testing.T) {
	d := NewDegraded(30*time.Millisecond, 0)
	start := time.Now()
	_, err := d.Respond(context.Background(), "hi")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = NewDegraded(time.Hour, 0).Respond(ctx, "hi")
	assert.True(t, IsTimeout(err))
}

func TestCannedRepliesMentionCortex(t *testing.T) {
	for _, r := range CannedReplies() {
		assert.True(t, strings.Contains(r, "Cortex"), r)
	}
}

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestTitleDeriver(t *testing.T) {
	long := "Can you explain how goroutines and channels work together in Go?"

	tests := []struct {
		name   string
		source Titler
		want   string
	}{
		{"derived", &stubSource{title: "  Go concurrency  "}, "Go concurrency"},
		{"failure truncates", &stubSource{err: errDown}, long[:40]},
		{"empty title truncates", &stubSource{title: "   "}, long[:40]},
		{"no source truncates", nil, long[:40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewTitleDeriver(tt.source, time.Second, nil, nil)
			assert.Equal(t, tt.want, d.Derive(context.Background(), long))
		})
	}
}

func TestFallbackTitle(t *testing.T) {
	assert.Equal(t, "short", FallbackTitle("short"))
	assert.Equal(t, strings.Repeat("a", 40), FallbackTitle(strings.Repeat("a", 60)))
	assert.Equal(t, strings.Repeat("é", 40), FallbackTitle(strings.Repeat("é", 41)), "counts characters, not bytes")
	assert.Equal(t, "  padded", FallbackTitle("  padded"), "prefix is unmodified")
}

func TestTitleDeriver_Metrics(t *testing.T) {
	metrics := telemetry.New(prometheus.NewRegistry())
	NewTitleDeriver(&stubSource{title: "A"}, 0, nil, metrics).Derive(context.Background(), "x")
	NewTitleDeriver(nil, 0, nil, metrics).Derive(context.Background(), "x")

	s := metrics.Snapshot()
	assert.Equal(t, 1, s.Titles[telemetry.TitleDerived])
	assert.Equal(t, 1, s.Titles[telemetry.TitleTruncated])
}
