// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxBackendBody caps how much of a backend response is read.
const maxBackendBody = 4 << 20

// =============================================================================
// WIRE TYPES
// =============================================================================

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

type titleResponse struct {
	Title *string `json:"title"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// =============================================================================
// BACKEND CLIENT
// =============================================================================

// BackendClient talks to the local chat backend over HTTP.
//
//	POST {base}/api/chat            {"prompt": ...} -> {"response": ...}
//	POST {base}/api/generate-title  {"prompt": ...} -> {"title": ...}
//
// The client is safe for concurrent use.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBackendClient creates a client for baseURL. A zero timeout leaves
// bounding to the caller's context.
func NewBackendClient(baseURL string, timeout time.Duration) *BackendClient {
	return &BackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the backend address.
func (c *BackendClient) BaseURL() string {
	return c.baseURL
}

// Respond asks the backend for an assistant reply.
func (c *BackendClient) Respond(ctx context.Context, prompt string) (string, error) {
	var out chatResponse
	if err := c.post(ctx, "/api/chat", prompt, &out); err != nil {
		return "", err
	}
	if out.Response == nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "response field missing"}
	}
	return *out.Response, nil
}

// GenerateTitle asks the backend to title a conversation from its first
// prompt.
func (c *BackendClient) GenerateTitle(ctx context.Context, prompt string) (string, error) {
	var out titleResponse
	if err := c.post(ctx, "/api/generate-title", prompt, &out); err != nil {
		return "", err
	}
	if out.Title == nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "title field missing"}
	}
	return *out.Title, nil
}

func (c *BackendClient) post(ctx context.Context, path, prompt string, out any) error {
	body, err := json.Marshal(promptRequest{Prompt: prompt})
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer drainAndClose(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	if err != nil {
		return transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("backend returned %s", resp.Status)
		var detail errorResponse
		if json.Unmarshal(data, &detail) == nil && detail.Detail != "" {
			msg += ": " + detail.Detail
		}
		return &ClientError{Type: ErrTypeStatus, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	r.Close()
}
