package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"sportstiming-notifier/pkg/ticket"

	"github.com/codeGROOVE-dev/retry"
	"github.com/go-resty/resty/v2"
)

const pushoverMessagesURL = "https://api.pushover.net/1/messages.json"

// Pushover sends push notifications through the Pushover API.
type Pushover struct {
	client   *resty.Client
	appToken string
	userKey  string
	logger   *slog.Logger
}

// NewPushover creates the Pushover channel.
func NewPushover(appToken, userKey string, logger *slog.Logger) *Pushover {
	return &Pushover{
		client:   resty.New().SetTimeout(10 * time.Second),
		appToken: appToken,
		userKey:  userKey,
		logger:   logger,
	}
}

// Name implements Notifier.
func (*Pushover) Name() string { return "pushover" }

// Send delivers the message as a push notification. Available-ticket alerts
// go out with raised priority.
func (p *Pushover) Send(ctx context.Context, msg *ticket.Message) error {
	priority := 0
	if msg.Priority {
		priority = 1
	}

	form := map[string]string{
		"token":    p.appToken,
		"user":     p.userKey,
		"title":    msg.Subject,
		"message":  msg.Body,
		"priority": strconv.Itoa(priority),
	}
	if len(msg.Links) > 0 {
		form["url"] = msg.Links[0]
		form["url_title"] = "Check Website"
	}

	err := retry.Do(
		func() error {
			start := time.Now()
			resp, err := p.client.R().
				SetContext(ctx).
				SetFormData(form).
				Post(pushoverMessagesURL)
			duration := time.Since(start)

			if err != nil {
				p.logger.Warn("Pushover API request failed, will retry",
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
				p.logger.Warn("Pushover API returned non-2xx status, will retry",
					"status_code", resp.StatusCode())
				return fmt.Errorf("HTTP %d", resp.StatusCode())
			}

			p.logger.Info("Pushover API request completed",
				"duration_ms", duration.Milliseconds(),
				"priority", priority,
				"status", "success")
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Info("Retrying Pushover send after error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}
	return nil
}
