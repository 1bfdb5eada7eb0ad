// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// TaskStatus is the lifecycle state of a proxied task.
type TaskStatus string

// Task statuses as reported by the upstream API, plus a catch-all.
const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusUnknown   TaskStatus = "unknown"
)

// Terminal reports whether the status can no longer change upstream.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus normalizes an upstream status string.
func ParseStatus(s string) TaskStatus {
	switch TaskStatus(s) {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return TaskStatus(s)
	default:
		return StatusUnknown
	}
}

// DefaultTaskTitle is the placeholder used until the upstream reports a real title.
const DefaultTaskTitle = "New task"

// Account stores one upstream credential. The API key is kept only as an
// opaque AEAD ciphertext blob; plaintext never reaches the repository.
type Account struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"-"`
	Name            string    `json:"name"`
	EncryptedAPIKey string    `json:"-"`
	BaseURL         string    `json:"baseUrl"`
	IsDefault       bool      `json:"isDefault"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ContentBlock is one piece of a message: text, or a file/image reference.
type ContentBlock struct {
	Type     string `json:"type"` // "text", "file" or "image"
	Text     string `json:"text,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Message is a single conversation turn.
type Message struct {
	ID        string         `json:"id,omitempty"`
	Role      string         `json:"role"` // "user" or "assistant"
	Content   []ContentBlock `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
}

// TextMessage builds a message holding a single text block.
func TextMessage(role, text string) Message {
	return Message{
		Role:      role,
		Content:   []ContentBlock{{Type: "text", Text: text}},
		Timestamp: time.Now().UTC(),
	}
}

// Task is the locally persisted view of an upstream conversation thread.
// RemoteTaskID always holds the id of the latest upstream response, not the
// id the thread was created with; every continuation reassigns it.
type Task struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"-"`
	AccountID    uuid.UUID  `json:"accountId"`
	RemoteTaskID string     `json:"remoteTaskId"`
	Title        string     `json:"title"`
	Status       TaskStatus `json:"status"`
	AgentProfile string     `json:"agentProfile"`
	TaskMode     string     `json:"taskMode"`
	ProjectID    string     `json:"projectId,omitempty"`
	TaskURL      string     `json:"taskUrl,omitempty"`
	ShareURL     string     `json:"shareUrl,omitempty"`
	CreditUsage  int64      `json:"creditUsage"`
	History      []Message  `json:"conversationHistory"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
