package aigen

import (
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is the persisted record of one past generation, used for
// reuse and audit in the dashboard.
type HistoryEntry struct {
	ID           uuid.UUID         `json:"id"`
	UserID       string            `json:"userId,omitempty"`
	Prompt       string            `json:"prompt"`
	Content      string            `json:"content"`
	TemplateID   string            `json:"templateId,omitempty"`
	TemplateName string            `json:"templateName,omitempty"`
	Variables    map[string]string `json:"variables,omitempty"`
	ModelID      string            `json:"model"`
	Provider     string            `json:"provider"`
	Usage        *TokenUsage       `json:"usage,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// HistoryLimit caps how many entries the fallback cache and per-user history
// queries return, most-recent-first.
const HistoryLimit = 50
