package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"sportstiming-notifier/pkg/ticket"

	"github.com/codeGROOVE-dev/retry"
	"github.com/jordan-wright/email"
)

// Email sends alerts over plain SMTP.
type Email struct {
	server   string
	port     int
	username string
	password string
	from     string
	to       string
	logger   *slog.Logger
}

// NewEmail creates the SMTP email channel.
func NewEmail(server string, port int, username, password, from, to string, logger *slog.Logger) *Email {
	return &Email{
		server:   server,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		logger:   logger,
	}
}

// Name implements Notifier.
func (*Email) Name() string { return "email" }

// Send delivers the message as a plain-text email. Transient SMTP failures
// are retried a few times before the send is considered failed.
func (e *Email) Send(ctx context.Context, msg *ticket.Message) error {
	var b strings.Builder
	b.WriteString("Ticket Check Results:\n\n")
	fmt.Fprintf(&b, "Status: %s\n", msg.Status.String())
	fmt.Fprintf(&b, "%s\n", msg.Body)
	fmt.Fprintf(&b, "Time: %s\n", time.Now().Format(time.RFC3339))
	for _, link := range msg.Links {
		fmt.Fprintf(&b, "URL: %s\n", link)
	}
	b.WriteString("\nThis is an automated message from your sportstiming ticket checker.\n")

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Sportstiming Notifier <%s>", e.from)
	mail.To = []string{e.to}
	mail.Subject = msg.Subject
	mail.Text = []byte(b.String())

	addr := fmt.Sprintf("%s:%d", e.server, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.server)

	err := retry.Do(
		func() error {
			start := time.Now()
			sendErr := mail.Send(addr, auth)
			if sendErr != nil {
				e.logger.Warn("SMTP send failed, will retry",
					"to", e.to,
					"duration_ms", time.Since(start).Milliseconds(),
					"error", sendErr)
				return sendErr
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Info("Retrying email send after error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}

	e.logger.Info("Email successfully sent", "to", e.to, "subject", msg.Subject)
	return nil
}
