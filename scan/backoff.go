package scan

import (
	"context"
	"log/slog"
	"time"

	"sportstiming-notifier/pkg/ticket"
)

// Sleeper suspends for a duration, waking early on context cancellation.
// Injected so tests can capture the backoff schedule without waiting it out.
type Sleeper func(ctx context.Context, d time.Duration) error

// WallClockSleep is the production Sleeper.
func WallClockSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CheckFunc runs one single-attempt check.
type CheckFunc func(ctx context.Context) ticket.CheckOutcome

// Backoff retries a check with exponential waits, but only for rate-limited
// outcomes. Every other status propagates immediately so it surfaces in the
// cycle result undelayed.
type Backoff struct {
	MaxAttempts int
	BaseWait    time.Duration
	Multiplier  int
	Sleep       Sleeper
	Logger      *slog.Logger
}

// NewBackoff returns the standard policy: 3 attempts, 30s base, doubling.
func NewBackoff(logger *slog.Logger) *Backoff {
	return &Backoff{
		MaxAttempts: 3,
		BaseWait:    30 * time.Second,
		Multiplier:  2,
		Sleep:       WallClockSleep,
		Logger:      logger,
	}
}

// Run invokes check up to MaxAttempts times. Waits between attempts are
// BaseWait * Multiplier^(attempt-1), stretched (never shrunk) by a server
// Retry-After hint. On exhaustion the terminal rate-limited outcome is
// returned as-is.
func (b *Backoff) Run(ctx context.Context, check CheckFunc) ticket.CheckOutcome {
	wait := b.BaseWait

	for attempt := 1; ; attempt++ {
		outcome := check(ctx)
		if outcome.Status != ticket.StatusRateLimited {
			return outcome
		}
		if attempt >= b.MaxAttempts {
			b.Logger.Warn("Rate limited, retry budget exhausted",
				"attempts", attempt,
				"url", outcome.URL)
			return outcome
		}

		d := wait
		if outcome.RetryAfter > d {
			d = outcome.RetryAfter
		}

		b.Logger.Info("Rate limited, backing off",
			"attempt", attempt,
			"wait", d.String(),
			"retry_after_hint", outcome.RetryAfter.String(),
			"url", outcome.URL)

		if err := b.Sleep(ctx, d); err != nil {
			b.Logger.Info("Backoff interrupted by shutdown", "error", err)
			return outcome
		}
		wait *= time.Duration(b.Multiplier)
	}
}
