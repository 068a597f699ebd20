// Package notify sends operator alerts about matches and rating rebuilds to
// chat webhooks. Alerts are filtered by event name.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/matchcast/internal/config"
)

// DefaultEvents are forwarded when no event filter is configured.
var DefaultEvents = []string{"match_finished", "rebuild_failed", "rebuild_completed", "job_failed"}

// Sender delivers one alert over one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans an alert out to every sender when its event is enabled.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list enables DefaultEvents.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	if len(events) == 0 {
		events = DefaultEvents
	}
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// FromConfig builds a Notifier with a sender per configured channel.
func FromConfig(cfg config.NotifyConfig, logger *slog.Logger) *Notifier {
	var senders []Sender
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, NewDiscordSender(cfg.DiscordWebhookURL))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	return NewNotifier(senders, cfg.Events, logger)
}

// Enabled reports whether event would be delivered.
func (n *Notifier) Enabled(event string) bool {
	return len(n.senders) > 0 && n.events[event]
}

// Notify delivers an alert to every sender. A failing sender does not stop
// delivery to the rest; all failures are returned together.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled(event) {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %s: %w", event, errors.Join(errs...))
	}
	return nil
}
