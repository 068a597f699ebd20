package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// Notifier forwards operator alerts. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string) error { return nil }

// publish encodes a bus message and sends it on its topic. Bus failures are
// logged and never fail the caller.
func publish(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, topic, msgType string, data any) {
	if bus == nil {
		return
	}
	payload, err := json.Marshal(domain.BusMessage{
		Type:      msgType,
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		logger.WarnContext(ctx, "marshal bus message failed",
			slog.String("type", msgType),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := bus.Publish(ctx, topic, payload); err != nil {
		logger.WarnContext(ctx, "publish bus message failed",
			slog.String("topic", topic),
			slog.String("type", msgType),
			slog.String("error", err.Error()),
		)
	}
}
