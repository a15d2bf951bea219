// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the chat application over a JSON HTTP API for the
// browser UI.
//
// # Endpoints
//
//   - GET    /health
//   - GET    /api/state
//   - GET    /api/conversations, POST /api/conversations
//   - GET    /api/conversations/{id}, DELETE /api/conversations/{id}
//   - POST   /api/conversations/{id}/select
//   - GET    /api/conversations/{id}/export?format=markdown|json
//   - POST   /api/conversations/{id}/messages
//   - POST   /api/conversations/{id}/messages/{messageID}/regenerate
//   - GET    /api/models?q=&category=
//   - POST   /api/models/{id}/download, POST /api/models/{id}/select
//   - GET    /api/settings, PUT /api/settings, POST /api/settings/reset
//   - GET    /metrics
//
// Unknown conversations and models are 404, a conversation already awaiting
// a reply is 409, malformed bodies are 400 and settings that fail
// validation are 422 with a per-field error list.
//
// # Key Types
//
//   - Server: routes, middleware and lifecycle
//   - RateLimiter: per-client token buckets
//   - CORSConfig: allowed browser origins
//
// # Usage
//
//	srv := server.New(a, server.Options{Port: cfg.Advanced.ServerPort, Logger: logger})
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
