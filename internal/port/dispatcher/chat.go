package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ChatChunk is one piece of a streamed chat response.
type ChatChunk struct {
	Text string
	Done bool
}

// ChatDispatcher sends a chat message and returns a structured result.
// Chat is not part of orchestration correctness; it shares the
// registry because both sinks are swapped by the same plugins.
type ChatDispatcher interface {
	Available() bool
	Send(ctx context.Context, sessionID, message string, timeout time.Duration) (map[string]any, error)
	ExtractText(result map[string]any) string
	// StreamSend is optional; implementations that don't support
	// streaming return a closed channel immediately.
	StreamSend(ctx context.Context, sessionID, message, provider string) (<-chan ChatChunk, error)
}

// ChatFactory constructs a ChatDispatcher from plugin/startup config.
type ChatFactory func(config map[string]string) (ChatDispatcher, error)

var (
	chatMu        sync.RWMutex
	chatFactories = make(map[string]ChatFactory)
	chatInst      ChatDispatcher
)

// RegisterChatFactory makes a ChatDispatcher factory available by name.
func RegisterChatFactory(name string, factory ChatFactory) {
	chatMu.Lock()
	defer chatMu.Unlock()
	if _, exists := chatFactories[name]; exists {
		panic(fmt.Sprintf("dispatcher: duplicate chat factory registration for %q", name))
	}
	chatFactories[name] = factory
}

// NewChatDispatcher constructs a ChatDispatcher by registered name.
func NewChatDispatcher(name string, config map[string]string) (ChatDispatcher, error) {
	chatMu.RLock()
	factory, ok := chatFactories[name]
	chatMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dispatcher: unknown chat dispatcher %q", name)
	}
	return factory(config)
}

// SetActiveChatDispatcher installs the process-wide ChatDispatcher.
func SetActiveChatDispatcher(d ChatDispatcher) {
	chatMu.Lock()
	defer chatMu.Unlock()
	chatInst = d
}

// ActiveChatDispatcher returns the currently installed ChatDispatcher, or nil.
func ActiveChatDispatcher() ChatDispatcher {
	chatMu.RLock()
	defer chatMu.RUnlock()
	return chatInst
}
