// Package chatdispatcher implements both the StepDispatcher and
// ChatDispatcher ports over an OpenAI-compatible chat-completion HTTP
// API (LiteLLM Proxy, Ollama, or any compatible gateway).
package chatdispatcher

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

	"github.com/forgewright/orchestrator/internal/port/dispatcher"
	"github.com/forgewright/orchestrator/internal/resilience"
)

const backendName = "chat"

// chatMessage is one message in a chat completion request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
}

// Client talks to an OpenAI-compatible /v1/chat/completions endpoint
// and implements both dispatcher ports against it.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// New creates a chat-completion client.
func New(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// RegisterStep registers this client as the "chat" StepDispatcher factory.
func RegisterStep(baseURL, apiKey, model string) {
	dispatcher.RegisterStepFactory(backendName, func(_ map[string]string) (dispatcher.StepDispatcher, error) {
		return New(baseURL, apiKey, model), nil
	})
}

// RegisterChat registers this client as the "chat" ChatDispatcher factory.
func RegisterChat(baseURL, apiKey, model string) {
	dispatcher.RegisterChatFactory(backendName, func(_ map[string]string) (dispatcher.ChatDispatcher, error) {
		return New(baseURL, apiKey, model), nil
	})
}

// Name returns "chat".
func (c *Client) Name() string { return backendName }

// Dispatch sends the step prompt as a single user message and returns
// the assistant's reply as the step's output.
func (c *Client) Dispatch(ctx context.Context, stepID, prompt string, timeout time.Duration, cfg *dispatcher.AgentConfig) (dispatcher.DispatchResult, error) {
	model := c.model
	baseURL := c.baseURL
	if cfg != nil {
		if cfg.Model != "" {
			model = cfg.Model
		}
		if cfg.BaseURL != "" {
			baseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
	}

	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := c.completion(reqCtx, baseURL, completionRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return dispatcher.DispatchResult{}, fmt.Errorf("chatdispatcher: dispatch step %s: %w", stepID, err)
	}
	if len(resp.Choices) == 0 {
		return dispatcher.DispatchResult{Status: dispatcher.DispatchError}, fmt.Errorf("chatdispatcher: empty choices for step %s", stepID)
	}
	return dispatcher.DispatchResult{Status: dispatcher.DispatchOK, Text: resp.Choices[0].Message.Content}, nil
}

// Available reports whether the client has enough configuration to
// attempt a call.
func (c *Client) Available() bool {
	return c.baseURL != ""
}

// Send implements ChatDispatcher.Send: a single-turn chat exchange,
// returning the raw decoded response as a generic map.
func (c *Client) Send(ctx context.Context, sessionID, message string, timeout time.Duration) (map[string]any, error) {
	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := c.completion(reqCtx, c.baseURL, completionRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: message}},
	})
	if err != nil {
		return nil, fmt.Errorf("chatdispatcher: send session %s: %w", sessionID, err)
	}
	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return map[string]any{"text": text, "model": resp.Model}, nil
}

// ExtractText pulls the "text" field back out of a Send result.
func (c *Client) ExtractText(result map[string]any) string {
	if result == nil {
		return ""
	}
	text, _ := result["text"].(string)
	return text
}

// StreamSend sends a streaming completion request, delivering chunks
// of content as they arrive over SSE.
func (c *Client) StreamSend(ctx context.Context, sessionID, message, provider string) (<-chan dispatcher.ChatChunk, error) {
	out := make(chan dispatcher.ChatChunk)

	type streamReq struct {
		completionRequest
		Stream bool `json:"stream"`
	}
	body, err := json.Marshal(streamReq{
		completionRequest: completionRequest{
			Model:    c.model,
			Messages: []chatMessage{{Role: "user", Content: message}},
		},
		Stream: true,
	})
	if err != nil {
		close(out)
		return out, fmt.Errorf("chatdispatcher: marshal stream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		close(out)
		return out, fmt.Errorf("chatdispatcher: build stream request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		close(out)
		return out, fmt.Errorf("chatdispatcher: stream request session %s: %w", sessionID, err)
	}

	go c.readStream(resp.Body, out)
	return out, nil
}

func (c *Client) readStream(body io.ReadCloser, out chan<- dispatcher.ChatChunk) {
	defer close(out)
	defer func() { _ = body.Close() }()

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			out <- dispatcher.ChatChunk{Done: true}
			return
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			out <- dispatcher.ChatChunk{Text: chunk.Choices[0].Delta.Content}
		}
	}
}

func (c *Client) completion(ctx context.Context, baseURL string, req completionRequest) (*completionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	call := func() (*completionResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		c.setHeaders(httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("chat completion API error %d: %s", resp.StatusCode, string(data))
		}

		var parsed completionResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		return &parsed, nil
	}

	if c.breaker == nil {
		return call()
	}

	var result *completionResponse
	err = c.breaker.Execute(func() error {
		r, callErr := call()
		if callErr != nil {
			return callErr
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
