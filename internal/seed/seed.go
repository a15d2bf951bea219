// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package seed provides the fixed startup data: the model catalog and the
// sample conversations shown on first launch.
package seed

import (
	"time"

	"github.com/jeranaias/cortex/internal/model"
)

// DefaultModelID is the model selected when settings name none.
const DefaultModelID = "cortex-v1"

// Models returns a fresh copy of the built-in catalog.
func Models() []model.ModelInfo {
	return []model.ModelInfo{
		// Cortex models
		{
			ID:          "cortex-v1",
			Name:        "Cortex-v1",
			Description: "4B reasoning model specialized in web search and tool integration. Optimized for local deployment.",
			Category:    model.CategoryCortex,
			Size:        "2.3GB",
			Type:        model.TypeGGUF,
			Rating:      4.8,
			Downloads:   "125K",
			Recommended: true,
			IsInstalled: true,
		},
		{
			ID:          "cortex-nano-32k",
			Name:        "Cortex-Nano (32k)",
			Description: "Compact 4B model for web search with extended context window and MCP tool support.",
			Category:    model.CategoryCortex,
			Size:        "2.1GB",
			Type:        model.TypeGGUF,
			Rating:      4.6,
			Downloads:   "89K",
		},
		{
			ID:          "lucy",
			Name:        "Lucy",
			Description: "1.7B mobile-optimized model for web search. Perfect for resource-constrained environments.",
			Category:    model.CategoryCortex,
			Size:        "980MB",
			Type:        model.TypeGGUF,
			Rating:      4.4,
			Downloads:   "67K",
		},

		// Local models
		{
			ID:          "llama-3-8b",
			Name:        "Llama 3 8B",
			Description: "Meta's latest open-source language model with excellent reasoning capabilities.",
			Category:    model.CategoryLocal,
			Size:        "4.7GB",
			Type:        model.TypeGGUF,
			Rating:      4.9,
			Downloads:   "2.1M",
			Recommended: true,
			IsInstalled: true,
		},
		{
			ID:          "mistral-7b",
			Name:        "Mistral 7B",
			Description: "Fast and efficient model with strong performance on coding and reasoning tasks.",
			Category:    model.CategoryLocal,
			Size:        "4.1GB",
			Type:        model.TypeGGUF,
			Rating:      4.7,
			Downloads:   "1.8M",
			Recommended: true,
		},
		{
			ID:          "qwen-14b",
			Name:        "Qwen 14B",
			Description: "Large multilingual model with excellent performance across various tasks.",
			Category:    model.CategoryLocal,
			Size:        "8.2GB",
			Type:        model.TypeGGUF,
			Rating:      4.8,
			Downloads:   "890K",
		},
		{
			ID:          "gemma-7b",
			Name:        "Gemma 7B",
			Description: "Google's open-source model with strong safety features and performance.",
			Category:    model.CategoryLocal,
			Size:        "4.9GB",
			Type:        model.TypeGGUF,
			Rating:      4.6,
			Downloads:   "1.2M",
		},

		// Cloud models
		{
			ID:             "openai-gpt4",
			Name:           "GPT-4",
			Description:    "OpenAI's most capable model for complex reasoning and creative tasks.",
			Category:       model.CategoryCloud,
			Size:           "API",
			Type:           model.TypeCloud,
			Rating:         4.9,
			Downloads:      "N/A",
			Recommended:    true,
			RequiresAPIKey: true,
		},
		{
			ID:             "anthropic-claude",
			Name:           "Claude 3.5 Sonnet",
			Description:    "Anthropic's latest model with strong reasoning and code generation capabilities.",
			Category:       model.CategoryCloud,
			Size:           "API",
			Type:           model.TypeCloud,
			Rating:         4.8,
			Downloads:      "N/A",
			Recommended:    true,
			RequiresAPIKey: true,
		},
		{
			ID:             "google-gemini",
			Name:           "Gemini Pro",
			Description:    "Google's multimodal AI model with text, image, and code understanding.",
			Category:       model.CategoryCloud,
			Size:           "API",
			Type:           model.TypeCloud,
			Rating:         4.7,
			Downloads:      "N/A",
			RequiresAPIKey: true,
		},
	}
}

const welcomeReply = "Cortex is your private AI assistant that runs 100% offline on your device. Here's what I can help you with:\n\n" +
	"• **Local AI Models**: I can run powerful language models directly on your computer without internet\n" +
	"• **Privacy First**: All conversations stay on your device - no data is sent to external servers\n" +
	"• **Model Flexibility**: Choose from local models like Llama, Mistral, or connect to cloud providers\n" +
	"• **Tool Integration**: Connect to external tools through MCP (Model Context Protocol)\n" +
	"• **Code & Writing**: Help with programming, creative writing, analysis, and more\n\n" +
	"Would you like to know more about any specific feature?"

// Conversations returns the sample conversations with timestamps relative to
// now. The first entry is the one shown at startup.
func Conversations(now time.Time) []model.Conversation {
	day := 24 * time.Hour
	twoDaysAgo := now.Add(-2 * day)

	return []model.Conversation{
		{
			ID:           "conv-1",
			Title:        "Getting Started with Cortex",
			LastActivity: twoDaysAgo,
			Status:       model.StatusIdle,
			Messages: []model.Message{
				{
					ID:        "msg-1",
					Role:      model.RoleUser,
					Content:   "What can Cortex do?",
					Timestamp: twoDaysAgo.Add(-5 * time.Minute),
				},
				{
					ID:        "msg-2",
					Role:      model.RoleAssistant,
					Content:   welcomeReply,
					Timestamp: twoDaysAgo.Add(-4 * time.Minute),
				},
			},
		},
		{
			ID:           "conv-2",
			Title:        "Python Code Review",
			LastActivity: now.Add(-3 * day),
			Status:       model.StatusIdle,
			Messages:     []model.Message{},
		},
	}
}
