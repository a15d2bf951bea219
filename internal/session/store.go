// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/cortex/internal/model"
)

var (
	// ErrNotFound is returned when a conversation ID is unknown.
	ErrNotFound = errors.New("conversation not found")

	// ErrBusy is returned when a conversation already has a fetch in flight.
	ErrBusy = errors.New("conversation is awaiting a response")

	// ErrOutOfTurn is returned when an assistant message would not follow a
	// user message.
	ErrOutOfTurn = errors.New("assistant message must follow a user message")
)

// =============================================================================
// STORE
// =============================================================================

// Store holds conversations in creation order (newest first) and the active
// pointer. The active ID is always empty or the ID of a stored conversation.
type Store struct {
	mu sync.Mutex

	convs    []*model.Conversation
	activeID string

	now    func() time.Time
	logger *zap.Logger

	// Callbacks
	onFirstMessage func(convID, content string)
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSeed preloads conversations. The first one becomes active.
func WithSeed(convs []model.Conversation) Option {
	return func(s *Store) {
		for i := range convs {
			c := convs[i].Clone()
			if c.Status == "" {
				c.Status = model.StatusIdle
			}
			s.convs = append(s.convs, &c)
		}
		if len(s.convs) > 0 {
			s.activeID = s.convs[0].ID
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFirstMessageCallback sets the function called after the first user
// message lands in an empty conversation. It runs outside the store lock and
// must not block.
func (s *Store) SetFirstMessageCallback(fn func(convID, content string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFirstMessage = fn
}

// =============================================================================
// CONVERSATION LIFECYCLE
// =============================================================================

// Create prepends an empty conversation and makes it active.
func (s *Store) Create() model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := model.NewConversation(s.now())
	s.convs = append([]*model.Conversation{conv}, s.convs...)
	s.activeID = conv.ID

	s.logger.Debug("CONVERSATION_CREATED", zap.String("conversation_id", conv.ID))
	return conv.Clone()
}

// Select makes id the active conversation. Unknown IDs are ignored.
func (s *Store) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(id) < 0 {
		return false
	}
	s.activeID = id
	return true
}

// Delete removes a conversation. When the active conversation is removed the
// most recently active remaining one takes its place. Deleting an unknown ID
// is a no-op.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.find(id)
	if idx < 0 {
		return false
	}
	s.convs = append(s.convs[:idx], s.convs[idx+1:]...)

	if s.activeID == id {
		s.activeID = s.mostRecentLocked()
	}

	s.logger.Debug("CONVERSATION_DELETED",
		zap.String("conversation_id", id),
		zap.String("active_id", s.activeID))
	return true
}

// mostRecentLocked returns the ID with the latest LastActivity, preferring
// the earlier entry on ties, or "" when the store is empty.
func (s *Store) mostRecentLocked() string {
	var best *model.Conversation
	for _, c := range s.convs {
		if best == nil || c.LastActivity.After(best.LastActivity) {
			best = c
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

// =============================================================================
// MESSAGE MUTATIONS
// =============================================================================

// AppendUserMessage appends a user message and bumps LastActivity. If the
// conversation was empty the first-message callback fires.
func (s *Store) AppendUserMessage(convID, text string) (model.Message, error) {
	s.mu.Lock()
	conv := s.get(convID)
	if conv == nil {
		s.mu.Unlock()
		return model.Message{}, ErrNotFound
	}

	first := conv.IsEmpty()
	msg := s.appendLocked(conv, model.RoleUser, text)
	onFirst := s.onFirstMessage
	s.mu.Unlock()

	if first && onFirst != nil {
		onFirst(convID, text)
	}
	return msg, nil
}

// AppendAssistantMessage appends an assistant message. It returns ErrNotFound
// when the conversation is gone and ErrOutOfTurn unless the last message is
// from the user.
func (s *Store) AppendAssistantMessage(convID, text string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.get(convID)
	if conv == nil {
		return model.Message{}, ErrNotFound
	}
	last, ok := conv.LastMessage()
	if !ok || last.Role != model.RoleUser {
		return model.Message{}, ErrOutOfTurn
	}
	return s.appendLocked(conv, model.RoleAssistant, text), nil
}

func (s *Store) appendLocked(conv *model.Conversation, role model.Role, text string) model.Message {
	now := s.now()
	// Timestamps never run backwards within a conversation.
	if last, ok := conv.LastMessage(); ok && now.Before(last.Timestamp) {
		now = last.Timestamp
	}
	msg := model.NewMessage(role, text, now)
	conv.Messages = append(conv.Messages, msg)
	conv.LastActivity = now
	return msg
}

// RegenerateFrom drops messageID and everything after it, returning the
// content of the user message that preceded it. It reports false, leaving
// the conversation untouched, when the conversation or message is missing,
// the message is first, or it does not follow a user message.
func (s *Store) RegenerateFrom(convID, messageID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.get(convID)
	if conv == nil {
		return "", false
	}
	idx := conv.IndexOf(messageID)
	if idx <= 0 {
		return "", false
	}
	prev := conv.Messages[idx-1]
	if prev.Role != model.RoleUser {
		return "", false
	}

	// Fresh backing array so earlier snapshots keep their view.
	kept := make([]model.Message, idx)
	copy(kept, conv.Messages[:idx])
	conv.Messages = kept

	s.logger.Debug("CONVERSATION_TRUNCATED",
		zap.String("conversation_id", convID),
		zap.Int("remaining", idx))
	return prev.Content, true
}

// SetTitle replaces the title if the conversation still exists. Blank titles
// are ignored.
func (s *Store) SetTitle(convID, title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.get(convID)
	if conv == nil {
		s.logger.Debug("TITLE_DISCARDED", zap.String("conversation_id", convID))
		return false
	}
	conv.Title = title
	return true
}

// =============================================================================
// FETCH STATUS
// =============================================================================

// BeginResponse marks the conversation as awaiting a response. Only one
// fetch may be outstanding per conversation.
func (s *Store) BeginResponse(convID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.get(convID)
	if conv == nil {
		return ErrNotFound
	}
	if conv.Status == model.StatusAwaitingResponse {
		return ErrBusy
	}
	conv.Status = model.StatusAwaitingResponse
	return nil
}

// EndResponse returns the conversation to idle. Missing IDs are ignored.
func (s *Store) EndResponse(convID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv := s.get(convID); conv != nil {
		conv.Status = model.StatusIdle
	}
}

// =============================================================================
// READS
// =============================================================================

// Get returns a copy of the conversation.
func (s *Store) Get(id string) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.get(id)
	if conv == nil {
		return model.Conversation{}, false
	}
	return conv.Clone(), true
}

// List returns copies of every conversation in store order.
func (s *Store) List() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Conversation, len(s.convs))
	for i, c := range s.convs {
		out[i] = c.Clone()
	}
	return out
}

// ListByActivity returns copies ordered most recently active first.
func (s *Store) ListByActivity() []model.Conversation {
	out := s.List()
	model.SortByActivity(out)
	return out
}

// ActiveID returns the active conversation ID, or "" if none.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns a copy of the active conversation.
func (s *Store) Active() (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.get(s.activeID)
	if conv == nil {
		return model.Conversation{}, false
	}
	return conv.Clone(), true
}

// Status returns the fetch status of a conversation.
func (s *Store) Status(convID string) (model.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.get(convID)
	if conv == nil {
		return "", false
	}
	return conv.Status, true
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

func (s *Store) find(id string) int {
	if id == "" {
		return -1
	}
	for i, c := range s.convs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) get(id string) *model.Conversation {
	if i := s.find(id); i >= 0 {
		return s.convs[i]
	}
	return nil
}
