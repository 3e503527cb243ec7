// Package scan runs one polling cycle: it checks the monitored target (a
// single resale page or a range of per-ticket pages), wraps every check in
// rate-limit backoff, and aggregates the outcomes into a cycle result.
package scan

import (
	"context"
	"log/slog"
	"time"

	"sportstiming-notifier/fetch"
	"sportstiming-notifier/pkg/ticket"
)

// Checker performs one single-attempt fetch-and-classify for a URL.
type Checker interface {
	Do(ctx context.Context, pageURL string) fetch.Result
}

// Scanner sequences checks across the target and aggregates the outcomes.
type Scanner struct {
	checker Checker
	backoff *Backoff
	pause   time.Duration // Courtesy pause between range-mode requests
	sleep   Sleeper
	logger  *slog.Logger
}

// New creates a scanner.
func New(checker Checker, backoff *Backoff, pause time.Duration, logger *slog.Logger) *Scanner {
	return &Scanner{
		checker: checker,
		backoff: backoff,
		pause:   pause,
		sleep:   WallClockSleep,
		logger:  logger,
	}
}

// Scan runs one full cycle over the target. A cancelled context returns the
// partial result along with ctx.Err(); any per-ID failure is folded into
// the aggregate and never aborts the rest of the range.
func (s *Scanner) Scan(ctx context.Context, target ticket.Target) (*ticket.CycleResult, error) {
	result := &ticket.CycleResult{StartedAt: time.Now()}

	if !target.RangeMode() {
		outcome := s.backoff.Run(ctx, func(ctx context.Context) ticket.CheckOutcome {
			return resolve(s.checker.Do(ctx, target.URL), 0, target.URL)
		})
		finish(result, []ticket.CheckOutcome{outcome})
		return result, ctx.Err()
	}

	var outcomes []ticket.CheckOutcome
	for id := target.RangeStart; id <= target.RangeEnd; id++ {
		// The stop signal must interrupt a long range scan promptly, not
		// just between cycles.
		if err := ctx.Err(); err != nil {
			s.logger.Info("Scan interrupted by shutdown",
				"checked", len(outcomes),
				"remaining", target.RangeEnd-id+1)
			finish(result, outcomes)
			return result, err
		}

		if len(outcomes) > 0 && s.pause > 0 {
			if err := s.sleep(ctx, s.pause); err != nil {
				finish(result, outcomes)
				return result, err
			}
		}

		pageURL := target.TicketURL(id)
		outcome := s.backoff.Run(ctx, func(ctx context.Context) ticket.CheckOutcome {
			return resolve(s.checker.Do(ctx, pageURL), id, pageURL)
		})
		outcomes = append(outcomes, outcome)

		s.logger.Info("Ticket checked",
			"ticket_id", id,
			"status", outcome.Status.String(),
			"detail", outcome.Detail)
	}

	finish(result, outcomes)
	return result, nil
}

// resolve stamps a fetch result into an immutable check outcome.
func resolve(r fetch.Result, id int, pageURL string) ticket.CheckOutcome {
	return ticket.CheckOutcome{
		CheckedAt:    time.Now(),
		Status:       r.Status,
		HTTPStatus:   r.HTTPStatus,
		Detail:       r.Detail,
		TicketID:     id,
		URL:          pageURL,
		ListingCount: r.ListingCount,
		RetryAfter:   r.RetryAfter,
	}
}

// finish derives the aggregate status: available if anything is available,
// otherwise the first non-success outcome encountered, otherwise no tickets.
func finish(result *ticket.CycleResult, outcomes []ticket.CheckOutcome) {
	result.FinishedAt = time.Now()
	result.Checked = len(outcomes)

	overall := ticket.StatusNoTickets
	firstFailure := ticket.StatusNoTickets
	haveFailure := false

	for _, o := range outcomes {
		switch o.Status {
		case ticket.StatusAvailable:
			result.Available = append(result.Available, o)
		case ticket.StatusNoTickets:
			// Success without availability; contributes nothing.
		case ticket.StatusRateLimited, ticket.StatusAuthRequired, ticket.StatusInvalid, ticket.StatusError:
			if o.Status == ticket.StatusRateLimited {
				result.SawRateLimit = true
			}
			if !haveFailure {
				firstFailure = o.Status
				haveFailure = true
			}
		}
	}

	switch {
	case len(result.Available) > 0:
		overall = ticket.StatusAvailable
	case haveFailure:
		overall = firstFailure
	}
	result.Status = overall
}
