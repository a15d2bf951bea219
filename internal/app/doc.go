// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the application service behind the chat UI, the HTTP API
// and the CLI.
//
// An App owns one conversation store, one model catalog, the live settings
// and the fetch pipeline. There is no package-level state: every caller
// works through an explicitly constructed App.
//
// # Usage
//
//	a := app.New(app.Options{Settings: settings, Logger: logger})
//	defer a.Close()
//
//	conv := a.NewChat()
//	res, err := a.SendMessage(ctx, conv.ID, "Hello")
//	if err != nil {
//	    // app.ErrEmptyMessage, session.ErrBusy or session.ErrNotFound
//	}
//	fmt.Println(res.Assistant.Content)
//
// Sending and regenerating hold the conversation in AwaitingResponse until
// the reply is appended; a second request for the same conversation fails
// with session.ErrBusy.
package app
