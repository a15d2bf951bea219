// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records service metrics for cortex.
//
// Metrics are exported in Prometheus format and mirrored into an in-memory
// Summary that the API and CLI can show without a scraper.
//
// # Key Types
//
//   - Metrics: Prometheus collectors plus local counters
//   - Summary: point-in-time totals
//   - Outcome: how a fetch was answered (primary, degraded, failed)
//
// # Usage
//
//	m := telemetry.New(prometheus.NewRegistry())
//	m.ObserveFetch(telemetry.OutcomePrimary, 120*time.Millisecond)
//	fmt.Println(m.Snapshot().Fetches)
//
// # Privacy
//
// Only counts and latencies are recorded. Prompt and reply content is
// never stored.
//
// A nil *Metrics is valid and records nothing.
package telemetry
