// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// CATEGORY & TYPE
// =============================================================================

// Category groups catalog entries on the model hub tabs.
type Category string

const (
	CategoryCortex Category = "cortex"
	CategoryLocal  Category = "local"
	CategoryCloud  Category = "cloud"
)

// ParseCategory converts user input into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryCortex:
		return CategoryCortex, nil
	case CategoryLocal:
		return CategoryLocal, nil
	case CategoryCloud:
		return CategoryCloud, nil
	default:
		return "", fmt.Errorf("unknown model category %q", s)
	}
}

// ModelType is the distribution format of a model.
type ModelType string

const (
	TypeGGUF  ModelType = "GGUF"
	TypeCloud ModelType = "Cloud"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo is a catalog entry. IsDownloading and IsInstalled are never both
// true for the same model.
type ModelInfo struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Category       Category  `json:"category"`
	Size           string    `json:"size"`
	Type           ModelType `json:"type"`
	Rating         float64   `json:"rating"`
	Downloads      string    `json:"downloads"`
	Recommended    bool      `json:"recommended"`
	IsInstalled    bool      `json:"is_installed"`
	IsDownloading  bool      `json:"is_downloading"`
	RequiresAPIKey bool      `json:"requires_api_key,omitempty"`
}

// Downloadable reports whether the model is a local artifact that can be
// fetched onto the device.
func (m ModelInfo) Downloadable() bool {
	return m.Type != TypeCloud
}

// Matches reports whether query appears in the name or description,
// ignoring case. An empty query matches everything.
func (m ModelInfo) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.Name), q) ||
		strings.Contains(strings.ToLower(m.Description), q)
}

// StatusLabel returns a short state label for list views.
func (m ModelInfo) StatusLabel() string {
	switch {
	case m.IsDownloading:
		return "downloading"
	case m.IsInstalled:
		return "installed"
	case m.RequiresAPIKey:
		return "api key"
	default:
		return "available"
	}
}
