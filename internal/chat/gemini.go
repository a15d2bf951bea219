// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig configures the cloud reply source.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int

	// BaseURL overrides the API endpoint (tests)
	BaseURL string
}

// GeminiClient produces replies and titles with the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiClient creates a Gemini-backed source.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	temp := float32(cfg.Temperature)
	gc := &genai.GenerateContentConfig{Temperature: &temp}
	if cfg.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(cfg.MaxTokens)
	}

	return &GeminiClient{client: client, model: cfg.Model, config: gc}, nil
}

// Model returns the model name requests are sent to.
func (g *GeminiClient) Model() string {
	return g.model
}

// Respond generates an assistant reply.
func (g *GeminiClient) Respond(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, prompt, g.config)
}

// GenerateTitle asks the model for a short conversation title.
func (g *GeminiClient) GenerateTitle(ctx context.Context, prompt string) (string, error) {
	instruction := "Write a title of at most six words for a conversation that begins with the message below. " +
		"Reply with the title only, without quotes.\n\n" + prompt

	temp := float32(0.2)
	title, err := g.generate(ctx, instruction, &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: 32,
	})
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(title), `"'`), nil
}

func (g *GeminiClient) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	res, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		if ctx.Err() != nil {
			return "", transportError(ctx, err)
		}
		return "", &ClientError{Type: ErrTypeStatus, Message: "gemini generate content failed", Cause: err}
	}

	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "gemini returned empty text"}
	}
	return text, nil
}
