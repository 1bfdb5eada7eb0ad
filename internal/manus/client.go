// Package manus is a thin typed client for the upstream conversational-task API.
package manus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout allows for slow task execution upstream.
const DefaultTimeout = 120 * time.Second

// DefaultBaseURL is used when an account has no base URL configured.
const DefaultBaseURL = "https://api.manus.ai"

// apiKeyHeader carries the raw API key on every request.
const apiKeyHeader = "API_KEY"

// APIError is an upstream HTTP failure. StatusCode is 0 when the request
// never produced a response (network failure, timeout).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("manus: %s", e.Message)
	}
	return fmt.Sprintf("manus: http %d: %s", e.StatusCode, e.Message)
}

// Client calls the upstream API. Safe for concurrent use.
type Client struct {
	http *http.Client
}

// NewClient constructs a client; timeout <= 0 selects DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// CreateTask starts a new upstream conversation thread.
func (c *Client) CreateTask(ctx context.Context, creds Credentials, p CreateParams) (*TaskResponse, error) {
	body := createRequest{
		Model: p.AgentProfile,
		Input: []inputTurn{userTurn(p.Prompt, p.Attachments)},
		Extensions: taskExtensions{
			TaskMode:     p.TaskMode,
			AgentProfile: p.AgentProfile,
			ProjectID:    p.ProjectID,
		},
	}
	var resp TaskResponse
	if err := c.do(ctx, creds, http.MethodPost, "/v1/tasks", body, &resp); err != nil {
		return nil, err
	}
	normalize(&resp)
	return &resp, nil
}

// ContinueTask adds a turn to an existing thread via previous_response_id.
func (c *Client) ContinueTask(ctx context.Context, creds Credentials, p ContinueParams) (*TaskResponse, error) {
	body := createRequest{
		Model:              p.AgentProfile,
		Input:              []inputTurn{userTurn(p.Prompt, p.Attachments)},
		PreviousResponseID: p.PreviousResponseID,
		Extensions: taskExtensions{
			TaskMode:     p.TaskMode,
			AgentProfile: p.AgentProfile,
		},
	}
	var resp TaskResponse
	if err := c.do(ctx, creds, http.MethodPost, "/v1/tasks", body, &resp); err != nil {
		return nil, err
	}
	normalize(&resp)
	return &resp, nil
}

// GetTask fetches the current status and output of one remote task.
func (c *Client) GetTask(ctx context.Context, creds Credentials, remoteID string) (*TaskResponse, error) {
	var resp TaskResponse
	if err := c.do(ctx, creds, http.MethodGet, "/v1/tasks/"+url.PathEscape(remoteID), nil, &resp); err != nil {
		return nil, err
	}
	normalize(&resp)
	return &resp, nil
}

// ListTasks returns one page of the upstream listing.
func (c *Client) ListTasks(ctx context.Context, creds Credentials, p ListParams) (*ListResult, error) {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	for _, s := range p.Status {
		q.Add("status", s)
	}
	if p.Order != "" {
		q.Set("order", p.Order)
	}
	path := "/v1/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp ListResult
	if err := c.do(ctx, creds, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = []TaskResponse{}
	}
	for i := range resp.Data {
		normalize(&resp.Data[i])
	}
	return &resp, nil
}

// DeleteTask removes one remote task.
func (c *Client) DeleteTask(ctx context.Context, creds Credentials, remoteID string) error {
	return c.do(ctx, creds, http.MethodDelete, "/v1/tasks/"+url.PathEscape(remoteID), nil, nil)
}

func userTurn(prompt string, atts []Attachment) inputTurn {
	content := make([]inputContent, 0, 1+len(atts))
	content = append(content, inputContent{Type: "input_text", Text: prompt})
	for _, a := range atts {
		typ := "input_file"
		if a.Type == "image" {
			typ = "input_image"
		}
		content = append(content, inputContent{Type: typ, URL: a.URL, Name: a.Name, MimeType: a.MimeType})
	}
	return inputTurn{Role: "user", Content: content}
}

func normalize(r *TaskResponse) {
	if r.Output == nil {
		r.Output = []OutputMessage{}
	}
}

func (c *Client) do(ctx context.Context, creds Credentials, method, path string, in, out any) error {
	base := strings.TrimRight(creds.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set(apiKeyHeader, creds.APIKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}

// readErrorMessage extracts an upstream error body, preferring the JSON
// {"error":{"message":...}} shape over raw text.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return "upstream error"
	}
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
