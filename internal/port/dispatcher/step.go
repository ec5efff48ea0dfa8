// Package dispatcher defines the two pluggable sinks every step and
// chat message flows through: StepDispatcher and ChatDispatcher. Each
// has a process-wide factory registry, where registering a name twice
// panics, and one active instance, where the latest SetActive call wins.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DispatchStatus is the terminal status a StepDispatcher reports.
type DispatchStatus string

const (
	DispatchOK    DispatchStatus = "ok"
	DispatchError DispatchStatus = "error"
)

// DispatchResult is what a StepDispatcher returns for one step.
type DispatchResult struct {
	Status DispatchStatus
	Text   string
}

// AgentConfig carries the overrides a step dispatch may honor: an
// agent's config may override provider/model/base_url.
type AgentConfig struct {
	Provider string
	Model    string
	BaseURL  string
}

// StepDispatcher executes one step's prompt synchronously from the
// engine's point of view, blocking until terminal or timeout.
type StepDispatcher interface {
	Name() string
	Dispatch(ctx context.Context, stepID, prompt string, timeout time.Duration, cfg *AgentConfig) (DispatchResult, error)
}

// StepFactory constructs a StepDispatcher from plugin/startup config.
type StepFactory func(config map[string]string) (StepDispatcher, error)

var (
	stepMu    sync.RWMutex
	stepName  string
	stepInst  StepDispatcher
	factories = make(map[string]StepFactory)
)

// RegisterStepFactory makes a StepDispatcher factory available by name,
// typically from an adapter package's init().
func RegisterStepFactory(name string, factory StepFactory) {
	stepMu.Lock()
	defer stepMu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("dispatcher: duplicate step factory registration for %q", name))
	}
	factories[name] = factory
}

// NewStepDispatcher constructs a StepDispatcher by registered name.
func NewStepDispatcher(name string, config map[string]string) (StepDispatcher, error) {
	stepMu.RLock()
	factory, ok := factories[name]
	stepMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dispatcher: unknown step dispatcher %q", name)
	}
	return factory(config)
}

// AvailableStepDispatchers returns the names of all registered step
// dispatcher factories.
func AvailableStepDispatchers() []string {
	stepMu.RLock()
	defer stepMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// SetActiveStepDispatcher installs the process-wide StepDispatcher.
// Any number of plugins may call this; the latest call wins.
func SetActiveStepDispatcher(name string, d StepDispatcher) {
	stepMu.Lock()
	defer stepMu.Unlock()
	stepName = name
	stepInst = d
}

// ActiveStepDispatcher returns the currently installed StepDispatcher,
// or nil if none has been set (the caller falls through to the
// simulated-completion path).
func ActiveStepDispatcher() (string, StepDispatcher) {
	stepMu.RLock()
	defer stepMu.RUnlock()
	return stepName, stepInst
}
