package manus

import (
	"strconv"
	"time"

	"github.com/and161185/manus-bridge/internal/model"
)

// Credentials identify one upstream account for a single call.
// The API key arrives already decrypted; it is never logged.
type Credentials struct {
	APIKey  string
	BaseURL string
}

// Attachment is a file or image reference included in a conversation turn.
type Attachment struct {
	Type     string `json:"type"` // "file" or "image"
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// CreateParams starts a new upstream conversation thread.
type CreateParams struct {
	Prompt       string
	AgentProfile string
	TaskMode     string
	ProjectID    string
	Attachments  []Attachment
}

// ContinueParams adds a turn to an existing thread. PreviousResponseID must
// be the id returned by the latest create/continue call on that thread.
type ContinueParams struct {
	PreviousResponseID string
	Prompt             string
	AgentProfile       string
	TaskMode           string
	Attachments        []Attachment
}

// ListParams filter the upstream task listing.
type ListParams struct {
	Limit  int
	Status []string
	Order  string // "asc" or "desc"
}

// Wire request types.

type inputContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

type inputTurn struct {
	Role    string         `json:"role"`
	Content []inputContent `json:"content"`
}

type taskExtensions struct {
	TaskMode     string `json:"task_mode,omitempty"`
	AgentProfile string `json:"agent_profile,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
}

type createRequest struct {
	Model              string         `json:"model"`
	Input              []inputTurn    `json:"input"`
	PreviousResponseID string         `json:"previous_response_id,omitempty"`
	Extensions         taskExtensions `json:"extensions"`
}

// OutputContent is one loosely-typed content item of an upstream output
// message. Optional keys are normalized at this boundary and never trusted
// deeper in the pipeline.
type OutputContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// OutputMessage is one message of the upstream output array.
type OutputMessage struct {
	ID      string          `json:"id,omitempty"`
	Role    string          `json:"role"`
	Content []OutputContent `json:"content"`
}

// TaskResponse is the normalized upstream view of one task/response.
type TaskResponse struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Title       string          `json:"title,omitempty"`
	TaskURL     string          `json:"task_url,omitempty"`
	ShareURL    string          `json:"share_url,omitempty"`
	CreditUsage string          `json:"credit_usage,omitempty"`
	Output      []OutputMessage `json:"output"`
}

// CreditValue parses the upstream usage counter; empty or malformed reads as 0.
func (r *TaskResponse) CreditValue() int64 {
	n, err := strconv.ParseInt(r.CreditUsage, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ListResult is one page of the upstream task listing.
type ListResult struct {
	Data    []TaskResponse `json:"data"`
	HasMore bool           `json:"has_more"`
	LastID  string         `json:"last_id,omitempty"`
}

// ParseOutput converts the upstream output array into domain messages.
// A content item carrying a file reference or an explicit file-output tag
// becomes a file block, everything else a text block. Nil arrays normalize
// to empty sequences.
func ParseOutput(out []OutputMessage) []model.Message {
	msgs := make([]model.Message, 0, len(out))
	now := time.Now().UTC()
	for _, om := range out {
		m := model.Message{
			ID:        om.ID,
			Role:      om.Role,
			Content:   make([]model.ContentBlock, 0, len(om.Content)),
			Timestamp: now,
		}
		for _, c := range om.Content {
			if c.FileURL != "" || c.Type == "output_file" {
				m.Content = append(m.Content, model.ContentBlock{
					Type:     "file",
					Text:     c.Text,
					FileURL:  c.FileURL,
					FileName: c.FileName,
					MimeType: c.MimeType,
				})
				continue
			}
			m.Content = append(m.Content, model.ContentBlock{Type: "text", Text: c.Text})
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// AssistantOnly filters to assistant-authored messages. The upstream echoes
// the caller's own input in its output; keeping it would duplicate history.
func AssistantOnly(msgs []model.Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "assistant" {
			out = append(out, m)
		}
	}
	return out
}
