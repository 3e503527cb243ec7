// Package schedule runs the top-level monitoring loop: one cycle of
// scanning, deciding and dispatching, followed by a computed delay. The
// loop runs until its context is cancelled, or once in single-shot mode.
package schedule

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"sportstiming-notifier/decide"
	"sportstiming-notifier/pkg/ticket"
	"sportstiming-notifier/scan"
)

const (
	// MinDelayFloor is the hard lower bound on any inter-cycle delay, so
	// the loop can never busy-spin even with maximum negative jitter.
	MinDelayFloor = 30 * time.Second
	// JitterRange bounds the uniform jitter added to every delay.
	JitterRange = 30 * time.Second
	// CooldownFloor is the minimum delay after a rate-limited cycle.
	CooldownFloor = 5 * time.Minute
)

// Scanner runs one polling cycle.
type Scanner interface {
	Scan(ctx context.Context, target ticket.Target) (*ticket.CycleResult, error)
}

// Decider turns a cycle result into an optional notification.
type Decider interface {
	Decide(state *decide.State, cycle *ticket.CycleResult, notifyAll bool) *ticket.Message
}

// Dispatcher fans a message out to the configured channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *ticket.Message) int
}

// Loop is the cooperative scheduler. One cycle runs to completion before
// the next begins; all state is owned by the single goroutine running Run.
type Loop struct {
	Scanner    Scanner
	Engine     Decider
	Dispatcher Dispatcher
	Target     ticket.Target
	Interval   time.Duration
	NotifyAll  bool
	Single     bool // Run one cycle, then return
	Logger     *slog.Logger

	// OnCycle, if set, observes every completed cycle (the status server
	// uses it). Called from the loop goroutine.
	OnCycle func(*ticket.CycleResult)

	// Sleep and Jitter are injectable for tests.
	Sleep  scan.Sleeper
	Jitter func() time.Duration

	state      decide.State
	inCooldown bool
}

// Run executes cycles until the context is cancelled. It returns nil on
// graceful shutdown or single-shot completion.
func (l *Loop) Run(ctx context.Context) error {
	if l.Sleep == nil {
		l.Sleep = scan.WallClockSleep
	}
	if l.Jitter == nil {
		l.Jitter = uniformJitter
	}

	l.Logger.Info("Monitoring started",
		"interval", l.Interval.String(),
		"range_mode", l.Target.RangeMode(),
		"notify_all", l.NotifyAll,
		"single", l.Single)

	for cycle := 1; ; cycle++ {
		result, err := l.Scanner.Scan(ctx, l.Target)
		if err != nil {
			// Cancelled mid-scan. Partial cycles are discarded; already
			// dispatched notifications stand.
			l.Logger.Info("Shutting down", "cycles_completed", cycle-1)
			return nil
		}

		l.Logger.Info("Cycle completed",
			"cycle", cycle,
			"status", result.Status.String(),
			"checked", result.Checked,
			"available", len(result.Available),
			"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds())

		if l.OnCycle != nil {
			l.OnCycle(result)
		}

		if msg := l.Engine.Decide(&l.state, result, l.NotifyAll); msg != nil {
			if failed := l.Dispatcher.Dispatch(ctx, msg); failed > 0 {
				l.Logger.Warn("Some notification channels failed", "failed", failed)
			}
		}

		if l.Single {
			l.Logger.Info("Single-shot check complete", "status", result.Status.String())
			return nil
		}

		rateLimited := result.RateLimited()
		switch {
		case rateLimited && !l.inCooldown:
			l.inCooldown = true
			l.Logger.Warn("Entering extended cooldown after rate limiting")
		case !rateLimited && l.inCooldown:
			l.inCooldown = false
			l.Logger.Info("Extended cooldown cleared")
		}

		delay := NextDelay(l.Interval, rateLimited, l.Jitter())
		l.Logger.Info("Next check scheduled",
			"delay", delay.String(),
			"extended_cooldown", rateLimited)

		if err := l.Sleep(ctx, delay); err != nil {
			l.Logger.Info("Shutting down", "cycles_completed", cycle)
			return nil
		}
	}
}

// NextDelay computes the inter-cycle delay: the base interval (raised to
// the cooldown floor after rate limiting) plus jitter, never below the
// hard floor.
func NextDelay(base time.Duration, rateLimited bool, jitter time.Duration) time.Duration {
	if rateLimited && base < CooldownFloor {
		base = CooldownFloor
	}
	d := base + jitter
	if d < MinDelayFloor {
		d = MinDelayFloor
	}
	return d
}

// uniformJitter draws from [-JitterRange, +JitterRange].
func uniformJitter() time.Duration {
	return time.Duration(rand.Int64N(int64(2*JitterRange))) - JitterRange
}
