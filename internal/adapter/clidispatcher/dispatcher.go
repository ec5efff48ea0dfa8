// Package clidispatcher implements the StepDispatcher port by handing
// steps to an external subprocess-style agent runner over NATS
// request-reply (the runner is typically a CLI coding agent wrapped
// by a small worker process, not spawned directly by this service).
package clidispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/forgewright/orchestrator/internal/port/dispatcher"
)

const backendName = "cli"

// SubjectStepDispatch is the NATS subject a step request is published
// on; the runner replies on the message's inbox reply subject.
const SubjectStepDispatch = "orchestrator.steps.dispatch"

// request is the payload published on SubjectStepDispatch.
type request struct {
	StepID   string `json:"step_id"`
	Prompt   string `json:"prompt"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// response is the payload the runner replies with.
type response struct {
	Status string `json:"status"` // "ok" or "error"
	Text   string `json:"text"`
	Error  string `json:"error,omitempty"`
}

// Dispatcher publishes steps to a subprocess-backed runner over NATS
// and blocks for its reply, so the engine sees a synchronous call even
// though the actual work happens out of process.
type Dispatcher struct {
	nc *nats.Conn
}

// New creates a CLI dispatcher bound to an established NATS connection.
func New(nc *nats.Conn) *Dispatcher {
	return &Dispatcher{nc: nc}
}

// Register registers the CLI dispatcher factory under the name "cli".
func Register(nc *nats.Conn) {
	dispatcher.RegisterStepFactory(backendName, func(_ map[string]string) (dispatcher.StepDispatcher, error) {
		return New(nc), nil
	})
}

// Name returns "cli".
func (d *Dispatcher) Name() string { return backendName }

// Dispatch publishes the step prompt and blocks until the runner
// replies or timeout elapses.
func (d *Dispatcher) Dispatch(ctx context.Context, stepID, prompt string, timeout time.Duration, cfg *dispatcher.AgentConfig) (dispatcher.DispatchResult, error) {
	req := request{StepID: stepID, Prompt: prompt}
	if cfg != nil {
		req.Provider = cfg.Provider
		req.Model = cfg.Model
		req.BaseURL = cfg.BaseURL
	}
	data, err := json.Marshal(req)
	if err != nil {
		return dispatcher.DispatchResult{}, fmt.Errorf("clidispatcher: marshal request: %w", err)
	}

	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	msg, err := d.nc.RequestWithContext(reqCtx, SubjectStepDispatch, data)
	if err != nil {
		return dispatcher.DispatchResult{}, fmt.Errorf("clidispatcher: request: %w", err)
	}

	var resp response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return dispatcher.DispatchResult{}, fmt.Errorf("clidispatcher: unmarshal response: %w", err)
	}

	if resp.Status != "ok" {
		errMsg := resp.Error
		if errMsg == "" {
			errMsg = "runner reported failure"
		}
		return dispatcher.DispatchResult{Status: dispatcher.DispatchError, Text: resp.Text}, fmt.Errorf("clidispatcher: %s", errMsg)
	}
	return dispatcher.DispatchResult{Status: dispatcher.DispatchOK, Text: resp.Text}, nil
}
