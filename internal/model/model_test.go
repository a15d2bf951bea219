// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := NewMessage(RoleUser, "Hello", at)

	assert.True(t, strings.HasPrefix(msg.ID, "msg-"), "ID should be prefixed, got %q", msg.ID)
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "Hello", msg.Content)
	assert.Equal(t, at, msg.Timestamp)

	other := NewMessage(RoleUser, "Hello", at)
	assert.NotEqual(t, msg.ID, other.ID, "IDs must be unique")
}

func TestRole_DisplayName(t *testing.T) {
	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.Equal(t, "Assistant", RoleAssistant.DisplayName())
	assert.Equal(t, "system", Role("system").DisplayName())
	assert.False(t, Role("system").Valid())
}

func TestMessage_Preview(t *testing.T) {
	msg := Message{Content: "first line\nsecond line that is rather long"}
	assert.Equal(t, "first l...", msg.Preview(10))
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation(t *testing.T) {
	now := time.Now()
	conv := NewConversation(now)

	assert.True(t, strings.HasPrefix(conv.ID, "conv-"))
	assert.Equal(t, DefaultTitle, conv.Title)
	assert.Equal(t, now, conv.LastActivity)
	assert.Empty(t, conv.Messages)
	assert.NotNil(t, conv.Messages)
	assert.Equal(t, StatusIdle, conv.Status)
	assert.True(t, conv.IsEmpty())
}

func TestConversation_CloneIsDeep(t *testing.T) {
	conv := NewConversation(time.Now())
	conv.Messages = append(conv.Messages, NewMessage(RoleUser, "Q", time.Now()))

	clone := conv.Clone()
	clone.Messages[0].Content = "changed"
	clone.Messages = append(clone.Messages, NewMessage(RoleAssistant, "A", time.Now()))

	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "Q", conv.Messages[0].Content)
}

func TestConversation_IndexOfAndLast(t *testing.T) {
	conv := NewConversation(time.Now())
	_, ok := conv.LastMessage()
	assert.False(t, ok)

	q := NewMessage(RoleUser, "Q", time.Now())
	a := NewMessage(RoleAssistant, "A", time.Now())
	conv.Messages = append(conv.Messages, q, a)

	assert.Equal(t, 0, conv.IndexOf(q.ID))
	assert.Equal(t, 1, conv.IndexOf(a.ID))
	assert.Equal(t, -1, conv.IndexOf("missing"))

	last, ok := conv.LastMessage()
	require.True(t, ok)
	assert.Equal(t, a.ID, last.ID)
	assert.Equal(t, 2, conv.MessageCount())
}

func TestSortByActivity(t *testing.T) {
	base := time.Now()
	convs := []Conversation{
		{ID: "old", LastActivity: base.Add(-2 * time.Hour)},
		{ID: "new", LastActivity: base},
		{ID: "tie-a", LastActivity: base.Add(-time.Hour)},
		{ID: "tie-b", LastActivity: base.Add(-time.Hour)},
	}

	SortByActivity(convs)

	ids := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"new", "tie-a", "tie-b", "old"}, ids)
}

// =============================================================================
// MODEL INFO TESTS
// =============================================================================

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"cortex", CategoryCortex, false},
		{" Local ", CategoryLocal, false},
		{"CLOUD", CategoryCloud, false},
		{"gpu", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseCategory(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestModelInfo_Matches(t *testing.T) {
	m := ModelInfo{Name: "Mistral 7B", Description: "Fast and efficient model for coding"}

	assert.True(t, m.Matches(""))
	assert.True(t, m.Matches("mistral"))
	assert.True(t, m.Matches("CODING"))
	assert.False(t, m.Matches("llama"))
}

func TestModelInfo_StatusLabel(t *testing.T) {
	assert.Equal(t, "downloading", ModelInfo{IsDownloading: true}.StatusLabel())
	assert.Equal(t, "installed", ModelInfo{IsInstalled: true}.StatusLabel())
	assert.Equal(t, "api key", ModelInfo{RequiresAPIKey: true, Type: TypeCloud}.StatusLabel())
	assert.Equal(t, "available", ModelInfo{Type: TypeGGUF}.StatusLabel())
	assert.False(t, ModelInfo{Type: TypeCloud}.Downloadable())
}
