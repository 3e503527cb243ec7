package notify

import (
	"context"
	"log/slog"

	"sportstiming-notifier/pkg/ticket"
)

// Mock is a channel that only logs, for local development.
type Mock struct {
	logger *slog.Logger
}

// NewMock creates a mock channel.
func NewMock(logger *slog.Logger) *Mock {
	return &Mock{logger: logger}
}

// Name implements Notifier.
func (*Mock) Name() string { return "mock" }

// Send logs the message instead of delivering it.
func (m *Mock) Send(_ context.Context, msg *ticket.Message) error {
	m.logger.Info("MOCK NOTIFICATION",
		"status", msg.Status.String(),
		"subject", msg.Subject,
		"body_length", len(msg.Body),
		"links", len(msg.Links))
	return nil
}
