// Package notify fans a decided notification out to the configured
// channels. Each channel is a Notifier; a failing channel is logged and
// never blocks the others, and the dispatcher never re-invokes a failed
// channel for the same message.
package notify

import (
	"context"
	"log/slog"

	"sportstiming-notifier/pkg/ticket"
)

// Notifier is the capability every concrete channel implements.
type Notifier interface {
	// Name identifies the channel in logs.
	Name() string
	// Send delivers one message. Implementations may retry transient
	// transport errors internally, but a returned error is final.
	Send(ctx context.Context, msg *ticket.Message) error
}

// Dispatcher sends a message to every configured channel independently.
type Dispatcher struct {
	channels []Notifier
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(logger *slog.Logger, channels ...Notifier) *Dispatcher {
	return &Dispatcher{channels: channels, logger: logger}
}

// Channels returns how many channels are configured.
func (d *Dispatcher) Channels() int {
	return len(d.channels)
}

// Dispatch delivers msg to all channels and returns how many failed.
// Delivery is at-most-once best effort; nothing is rolled back or re-sent.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *ticket.Message) int {
	failed := 0
	for _, n := range d.channels {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, msg); err != nil {
			d.logger.Error("Notification channel failed",
				"channel", n.Name(),
				"status", msg.Status.String(),
				"error", err)
			failed++
			continue
		}
		d.logger.Info("Notification sent",
			"channel", n.Name(),
			"status", msg.Status.String())
	}
	return failed
}
