// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat fetches assistant replies and conversation titles.
//
// A reply comes from the primary source (the local backend, or Gemini when
// local mode is off and a Google key is configured) behind a circuit
// breaker. When the primary fails the Fetcher either serves a canned reply
// or returns the failure so the caller can show ErrorReply. Titles fall
// back to the first 40 characters of the prompt.
//
// # Key Types
//
//   - Fetcher: primary source with fallback policy and timeout
//   - TitleDeriver: title source with truncation fallback
//   - BackendClient: HTTP client for /api/chat and /api/generate-title
//   - GeminiClient: Gemini API source
//   - Breaker: circuit breaker around a Responder
//   - Degraded: canned replies with simulated latency
//   - ClientError: typed fetch failure
//
// # Usage
//
//	p := chat.NewPipeline(ctx, cfg, logger, metrics)
//	reply, err := p.Fetcher.Fetch(ctx, "Hello")
//	if err != nil {
//	    reply.Text = chat.ErrorReply
//	}
//	title := p.Titles.Derive(ctx, "Hello")
package chat
