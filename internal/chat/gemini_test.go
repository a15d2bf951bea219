// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeGemini(t *testing.T, status int, text string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/test-model:generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":` +
			`"` + text + `"}]},"finishReason":"STOP"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestGeminiClient_Respond(t *testing.T) {
	g, err := NewGeminiClient(context.Background(), GeminiConfig{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: fakeGemini(t, http.StatusOK, "Hello from Gemini"),
	})
	require.NoError(t, err)
	assert.Equal(t, "test-model", g.Model())

	text, err := g.Respond(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello from Gemini", text)
}

func TestGeminiClient_TitleTrimsQuotes(t *testing.T) {
	g, err := NewGeminiClient(context.Background(), GeminiConfig{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: fakeGemini(t, http.StatusOK, `\"Go Concurrency Basics\"`),
	})
	require.NoError(t, err)

	title, err := g.GenerateTitle(context.Background(), "How do goroutines work?")
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency Basics", title)
}

func TestGeminiClient_Errors(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{})
	assert.Error(t, err, "API key is required")

	g, err := NewGeminiClient(context.Background(), GeminiConfig{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: fakeGemini(t, http.StatusInternalServerError, ""),
	})
	require.NoError(t, err)

	_, err = g.Respond(context.Background(), "Hi")
	require.Error(t, err)
	assert.True(t, IsFetchFailure(err))
}
