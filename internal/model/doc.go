// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages and
// the model catalog.
//
// # Key Types
//
//   - Conversation: titled, timestamped ordered sequence of messages
//   - Message: single immutable chat message (user or assistant)
//   - Status: per-conversation fetch state (Idle, AwaitingResponse)
//   - ModelInfo: catalog entry for a local or cloud model
//
// Values in this package are plain data. Ownership and mutation rules live in
// the session and catalog packages; callers receive copies.
//
// # Usage
//
//	conv := model.NewConversation(time.Now())
//	msg := model.NewMessage(model.RoleUser, "Hello!", time.Now())
package model
