// Package notify is the user-facing notification surface: every message is
// logged and pushed to connected dashboard clients as an SSE event.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/whatsdrip/dashboard/internal/sse"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

type Notification struct {
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

type Publisher interface {
	PublishJSON(ctx context.Context, topic, eventType string, data any) error
}

type BrokerNotifier struct {
	publisher Publisher
	topic     string
}

func NewBrokerNotifier(publisher Publisher, topic string) *BrokerNotifier {
	return &BrokerNotifier{publisher: publisher, topic: topic}
}

func (n *BrokerNotifier) Notify(ctx context.Context, level Level, message string) {
	logEvent(level).Str("level", string(level)).Msg(message)

	if n.publisher == nil {
		return
	}

	err := n.publisher.PublishJSON(context.WithoutCancel(ctx), n.topic, sse.EventNotification, Notification{
		Level:     level,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to publish notification")
	}
}

func logEvent(level Level) *zerolog.Event {
	if level == LevelError {
		return log.Warn().Str("surface", "notification")
	}
	return log.Info().Str("surface", "notification")
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Level, string) {}
