// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"time"
)

// DefaultTitle is the title every conversation starts with.
const DefaultTitle = "New Chat"

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status is the fetch state of a conversation. The UI disables input while a
// conversation is AwaitingResponse.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusAwaitingResponse Status = "awaiting_response"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a titled, timestamped ordered sequence of messages.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LastActivity time.Time `json:"last_activity"`
	Messages     []Message `json:"messages"`
	Status       Status    `json:"status"`
}

// NewConversation creates an empty conversation titled "New Chat".
func NewConversation(now time.Time) *Conversation {
	return &Conversation{
		ID:           NewID("conv"),
		Title:        DefaultTitle,
		LastActivity: now,
		Messages:     make([]Message, 0),
		Status:       StatusIdle,
	}
}

// Clone returns a deep copy that shares no slices with c.
func (c *Conversation) Clone() Conversation {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// IndexOf returns the position of the message with the given ID, or -1.
func (c *Conversation) IndexOf(messageID string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

// LastMessage returns the most recent message and true, or false if empty.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// SortByActivity orders conversations most-recently-active first. The sort is
// stable so conversations with equal activity keep their relative order.
func SortByActivity(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastActivity.After(convs[j].LastActivity)
	})
}
