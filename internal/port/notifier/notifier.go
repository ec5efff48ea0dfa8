// Package notifier defines the escalation notification port. Escalation
// always posts to the board; a notifier is a supplementary fan-out
// channel (Slack, Discord, ...) layered on top.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Notification is the payload sent through a Notifier.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Level   string `json:"level"` // "info", "warning", "error"
	Source  string `json:"source"`
}

// Capabilities declares which features a notifier supports.
type Capabilities struct {
	RichFormatting bool `json:"rich_formatting"`
	Threads        bool `json:"threads"`
}

// Notifier is the port interface for sending escalation notifications.
type Notifier interface {
	Name() string
	Capabilities() Capabilities
	Send(ctx context.Context, n Notification) error
}
