package models

import (
	"time"
)

// Role identifies the author of a chat message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one entry in a project's append-only transcript.
// Messages are never mutated after creation; corrections arrive as new
// appends.
type ChatMessage struct {
	ID         string                 `json:"id"`
	Role       string                 `json:"role"`
	Content    string                 `json:"content"`
	Image      string                 `json:"image,omitempty"`
	Plan       []string               `json:"plan,omitempty"`
	Diffs      map[string][]EditBlock `json:"diffs,omitempty"`
	IsApproval bool                   `json:"is_approval,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// ImageAttachment is a user-staged image forwarded to the generation
// backend alongside the next manual prompt.
type ImageAttachment struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

// Toast is an ephemeral user-facing notification.
type Toast struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Toast types
const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastInfo    = "info"
	ToastHealing = "healing"
)
