// Package service contains application services.
package service

import (
	"context"
	"log/slog"

	"github.com/forgewright/orchestrator/internal/port/notifier"
)

// NotificationService fans escalation notifications out to every
// configured notifier, and itself implements notifier.Notifier so
// OrchestratorService.SetNotifier can be handed a single combined
// channel regardless of how many providers are configured.
type NotificationService struct {
	notifiers     []notifier.Notifier
	enabledEvents map[string]bool
}

// NewNotificationService creates a NotificationService with the given notifiers
// and list of enabled event sources (e.g. "mission.escalated"). If
// enabledEvents is nil or empty, all sources are enabled.
func NewNotificationService(notifiers []notifier.Notifier, enabledEvents []string) *NotificationService {
	enabled := make(map[string]bool, len(enabledEvents))
	for _, e := range enabledEvents {
		enabled[e] = true
	}
	return &NotificationService{
		notifiers:     notifiers,
		enabledEvents: enabled,
	}
}

// Name identifies the combined channel.
func (s *NotificationService) Name() string { return "fanout" }

// Capabilities reports the union of every configured notifier's capabilities.
func (s *NotificationService) Capabilities() notifier.Capabilities {
	caps := notifier.Capabilities{}
	for _, provider := range s.notifiers {
		c := provider.Capabilities()
		caps.RichFormatting = caps.RichFormatting || c.RichFormatting
		caps.Threads = caps.Threads || c.Threads
	}
	return caps
}

// Send dispatches to every registered notifier. Errors are logged but
// do not interrupt delivery to other notifiers; the first error, if
// any, is returned after every notifier has been tried.
func (s *NotificationService) Send(ctx context.Context, n notifier.Notification) error {
	if len(s.enabledEvents) > 0 && !s.enabledEvents[n.Source] {
		return nil
	}

	var firstErr error
	for _, provider := range s.notifiers {
		if err := provider.Send(ctx, n); err != nil {
			slog.Warn("notification send failed",
				"provider", provider.Name(),
				"title", n.Title,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		slog.Debug("notification sent", "provider", provider.Name(), "title", n.Title)
	}
	return firstErr
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	return len(s.notifiers)
}
