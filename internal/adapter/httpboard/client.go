// Package httpboard implements the board port over the bit-exact
// external task board HTTP/SSE protocol.
package httpboard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/forgewright/orchestrator/internal/port/board"
	"github.com/forgewright/orchestrator/internal/resilience"
)

// Client talks to the external task board's REST + SSE surface.
type Client struct {
	baseURL    string
	token      string
	orgID      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// New creates an HTTP board client.
func New(baseURL, token, orgID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		orgID:   orgID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to outgoing REST calls (SSE
// streams are reconnect-managed by the caller and bypass the breaker).
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type itemsEnvelope[T any] struct {
	Items []T `json:"items"`
}

// ListBoards implements board.Adapter.
func (c *Client) ListBoards(ctx context.Context) ([]board.Board, error) {
	data, err := c.doJSON(ctx, http.MethodGet, "/api/v1/boards", nil)
	if err != nil {
		return nil, fmt.Errorf("httpboard: list boards: %w", err)
	}
	var env itemsEnvelope[board.Board]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("httpboard: decode boards: %w", err)
	}
	return env.Items, nil
}

// ListTasks implements board.Adapter.
func (c *Client) ListTasks(ctx context.Context, boardID, status string) ([]board.Task, error) {
	path := "/api/v1/boards/" + boardID + "/tasks"
	if status != "" {
		path += "?status=" + status
	}
	data, err := c.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("httpboard: list tasks: %w", err)
	}
	var env itemsEnvelope[board.Task]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("httpboard: decode tasks: %w", err)
	}
	return env.Items, nil
}

// UpdateTask implements board.Adapter.
func (c *Client) UpdateTask(ctx context.Context, boardID, taskID, status, comment string) error {
	body := map[string]string{"status": status}
	if comment != "" {
		body["comment"] = comment
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httpboard: marshal update task: %w", err)
	}
	path := "/api/v1/boards/" + boardID + "/tasks/" + taskID
	if _, err := c.doJSON(ctx, http.MethodPatch, path, data); err != nil {
		return fmt.Errorf("httpboard: update task: %w", err)
	}
	return nil
}

// CreateTask implements board.Adapter.
func (c *Client) CreateTask(ctx context.Context, boardID, title, description, priority string) (*board.Task, error) {
	body, err := json.Marshal(map[string]string{
		"title":       title,
		"description": description,
		"priority":    priority,
	})
	if err != nil {
		return nil, fmt.Errorf("httpboard: marshal create task: %w", err)
	}
	data, err := c.doJSON(ctx, http.MethodPost, "/api/v1/boards/"+boardID+"/tasks", body)
	if err != nil {
		return nil, fmt.Errorf("httpboard: create task: %w", err)
	}
	var t board.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("httpboard: decode created task: %w", err)
	}
	return &t, nil
}

// PostComment implements board.Adapter.
func (c *Client) PostComment(ctx context.Context, boardID, taskID, content string) error {
	data, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("httpboard: marshal comment: %w", err)
	}
	path := "/api/v1/boards/" + boardID + "/tasks/" + taskID + "/comments"
	if _, err := c.doJSON(ctx, http.MethodPost, path, data); err != nil {
		return fmt.Errorf("httpboard: post comment: %w", err)
	}
	return nil
}

// AskUser implements board.Adapter.
func (c *Client) AskUser(ctx context.Context, boardID, content, correlationID string) error {
	body := map[string]string{"board_id": boardID, "content": content}
	if correlationID != "" {
		body["correlation_id"] = correlationID
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httpboard: marshal ask-user: %w", err)
	}
	if _, err := c.doJSON(ctx, http.MethodPost, "/gateway/main/ask-user", data); err != nil {
		return fmt.Errorf("httpboard: ask-user: %w", err)
	}
	return nil
}

// StreamTasks implements board.Adapter.
func (c *Client) StreamTasks(ctx context.Context, boardID string) (<-chan board.Frame, <-chan error) {
	return c.stream(ctx, "/api/v1/boards/"+boardID+"/tasks/stream")
}

// StreamApprovals implements board.Adapter.
func (c *Client) StreamApprovals(ctx context.Context, boardID string) (<-chan board.Frame, <-chan error) {
	return c.stream(ctx, "/api/v1/boards/"+boardID+"/approvals/stream")
}

// stream opens a single SSE connection and parses frames until the
// body closes or ctx is cancelled. Reconnection is the caller's job
// (StreamIngestor), not this client's.
func (c *Client) stream(ctx context.Context, path string) (<-chan board.Frame, <-chan error) {
	frames := make(chan board.Frame)
	errs := make(chan error, 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		errs <- fmt.Errorf("httpboard: build stream request: %w", err)
		close(frames)
		close(errs)
		return frames, errs
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req) //nolint:bodyclose // closed in goroutine below
	if err != nil {
		errs <- fmt.Errorf("httpboard: stream connect: %w", err)
		close(frames)
		close(errs)
		return frames, errs
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		errs <- fmt.Errorf("httpboard: stream status %d: %s", resp.StatusCode, string(data))
		close(frames)
		close(errs)
		return frames, errs
	}

	go c.readFrames(resp.Body, frames, errs)
	return frames, errs
}

func (c *Client) readFrames(body io.ReadCloser, frames chan<- board.Frame, errs chan<- error) {
	defer close(frames)
	defer close(errs)
	defer func() { _ = body.Close() }()

	var eventType string
	var dataLines []string
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	flush := func() {
		if len(dataLines) == 0 {
			return
		}
		raw := strings.Join(dataLines, "\n")
		var decoded map[string]any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			decoded = map[string]any{"raw": raw}
		}
		frames <- board.Frame{Type: eventType, Data: decoded}
		eventType = ""
		dataLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		errs <- fmt.Errorf("httpboard: stream read: %w", err)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	call := func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("board API error %d: %s", resp.StatusCode, string(data))
		}
		return data, nil
	}

	if c.breaker == nil {
		return call()
	}

	var result []byte
	err := c.breaker.Execute(func() error {
		r, callErr := call()
		if callErr != nil {
			return callErr
		}
		result = r
		return nil
	})
	return result, err
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.orgID != "" {
		req.Header.Set("X-Organization-Id", c.orgID)
	}
}
