package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sportstiming-notifier/pkg/ticket"

	"github.com/codeGROOVE-dev/retry"
	"github.com/go-resty/resty/v2"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// SMS sends alerts as text messages through the Twilio REST API.
type SMS struct {
	client     *resty.Client
	accountSID string
	from       string
	to         string
	logger     *slog.Logger
}

// NewSMS creates the Twilio SMS channel.
func NewSMS(accountSID, authToken, from, to string, logger *slog.Logger) *SMS {
	client := resty.New().
		SetBaseURL(twilioBaseURL).
		SetBasicAuth(accountSID, authToken).
		SetTimeout(10 * time.Second)
	return &SMS{
		client:     client,
		accountSID: accountSID,
		from:       from,
		to:         to,
		logger:     logger,
	}
}

// Name implements Notifier.
func (*SMS) Name() string { return "sms" }

// Send delivers the message as a single SMS. The body is kept short; SMS
// carries the status and the first link only.
func (s *SMS) Send(ctx context.Context, msg *ticket.Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Sportstiming Alert!\n\nStatus: %s\n", msg.Status.String())
	if i := strings.IndexByte(msg.Body, '\n'); i > 0 {
		b.WriteString(msg.Body[:i])
	} else {
		b.WriteString(msg.Body)
	}
	if len(msg.Links) > 0 {
		fmt.Fprintf(&b, "\n\nCheck: %s", msg.Links[0])
	}

	err := retry.Do(
		func() error {
			start := time.Now()
			resp, err := s.client.R().
				SetContext(ctx).
				SetFormData(map[string]string{
					"To":   s.to,
					"From": s.from,
					"Body": b.String(),
				}).
				Post(fmt.Sprintf("/Accounts/%s/Messages.json", s.accountSID))
			duration := time.Since(start)

			if err != nil {
				s.logger.Warn("Twilio API request failed, will retry",
					"to", s.to,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
				s.logger.Warn("Twilio API returned non-2xx status, will retry",
					"status_code", resp.StatusCode(),
					"to", s.to)
				return fmt.Errorf("HTTP %d", resp.StatusCode())
			}

			s.logger.Info("Twilio API request completed",
				"to", s.to,
				"duration_ms", duration.Milliseconds(),
				"status", "success")
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying SMS send after error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}
	return nil
}
