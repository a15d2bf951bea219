// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/cortex/internal/model"
)

// JSONExporter renders the conversation exactly as the API serves it.
type JSONExporter struct{}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// jsonDocument wraps the conversation with export metadata.
type jsonDocument struct {
	ExportedAt   time.Time          `json:"exported_at"`
	Conversation model.Conversation `json:"conversation"`
}

// Export renders conv as indented JSON. Empty conversations are allowed.
func (e *JSONExporter) Export(conv model.Conversation, exportedAt time.Time) ([]byte, error) {
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}
	return json.MarshalIndent(jsonDocument{ExportedAt: exportedAt, Conversation: conv}, "", "  ")
}

func (e *JSONExporter) FileExtension() string { return ".json" }

func (e *JSONExporter) MimeType() string { return "application/json" }
