// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"
)

// cannedReplies are served when no reply source is reachable.
var cannedReplies = []string{
	"I understand you're asking about that. As your local AI assistant running on Cortex, I can help you explore this topic while keeping all our conversation private on your device.",
	"That's a great question! Since I'm running locally through Cortex, I can provide detailed assistance without any privacy concerns. Let me break this down for you...",
	"I'm happy to help with that. One of the benefits of using Cortex is that I can process your requests completely offline while maintaining your privacy. Here's what I think...",
}

// codeReply answers prompts about code or programming.
const codeReply = "I'd be happy to help with your coding question! What specific programming challenge are you working on?"

// CannedReplies returns the general-purpose degraded replies.
func CannedReplies() []string {
	return append([]string(nil), cannedReplies...)
}

// CodeReply returns the degraded reply for programming prompts.
func CodeReply() string {
	return codeReply
}

// Degraded produces canned replies with simulated latency.
type Degraded struct {
	// Delay is the base latency before a reply
	Delay time.Duration

	// Jitter adds up to this much random extra latency
	Jitter time.Duration

	// pick returns a value in [0, n); nil uses math/rand/v2
	pick func(n int) int
}

// NewDegraded creates a degraded source.
func NewDegraded(delay, jitter time.Duration) *Degraded {
	return &Degraded{Delay: delay, Jitter: jitter}
}

// Respond waits the simulated latency, then returns a canned reply. It
// returns early with a timeout error if ctx ends first.
func (d *Degraded) Respond(ctx context.Context, prompt string) (string, error) {
	wait := d.Delay
	if d.Jitter > 0 {
		wait += time.Duration(d.intn(int(d.Jitter)))
	}

	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", &ClientError{Type: ErrTypeTimeout, Message: "degraded reply interrupted", Cause: ctx.Err()}
		case <-t.C:
		}
	}
	return d.Choose(prompt), nil
}

// Choose returns a canned reply for prompt without waiting.
func (d *Degraded) Choose(prompt string) string {
	if IsCodePrompt(prompt) {
		return codeReply
	}
	return cannedReplies[d.intn(len(cannedReplies))]
}

func (d *Degraded) intn(n int) int {
	if n <= 0 {
		return 0
	}
	if d.pick != nil {
		return d.pick(n)
	}
	return rand.IntN(n)
}

// IsCodePrompt reports whether prompt mentions code or programming.
func IsCodePrompt(prompt string) bool {
	p := strings.ToLower(prompt)
	return strings.Contains(p, "code") || strings.Contains(p, "programming")
}
