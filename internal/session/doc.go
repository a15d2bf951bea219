// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the in-memory conversation state behind the chat UI.
//
// The Store holds every conversation, the active pointer and the per
// conversation fetch status. All mutation goes through the Store; readers
// receive deep copies so nothing outside the package can alias its slices.
//
// # Key Types
//
//   - Store: conversation list, active pointer and mutations
//   - Option: functional options for clocks, seeds and logging
//
// # Usage
//
//	store := session.NewStore(session.WithSeed(seed.Conversations(time.Now())))
//	conv := store.Create()
//	if _, err := store.AppendUserMessage(conv.ID, "Hello"); err != nil {
//	    // session.ErrNotFound
//	}
//
// Results of asynchronous work are applied through guards that check the
// conversation still exists (SetTitle, AppendAssistantMessage), so a fetch
// that outlives its conversation never resurrects it.
package session
