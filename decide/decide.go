// Package decide holds the notification decision engine: given the previous
// monitor state and a fresh cycle result, it decides whether a notification
// is warranted. The core property is the separation of the last *seen*
// status from the last *notified* status, which suppresses repeat
// notifications while still firing on every genuine transition.
package decide

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"sportstiming-notifier/pkg/ticket"
)

// State is the process-wide monitor state, owned by a single goroutine and
// threaded through each scheduler iteration. It lives in memory only; a
// restart at worst repeats one notification.
type State struct {
	LastStatus            ticket.Status
	LastStatusKnown       bool
	LastNotifiedStatus    ticket.Status
	LastNotifiedKnown     bool
	LastNotifiedIDs       []int // Sorted available-ticket IDs of the last notification
	ConsecutiveSameStatus int   // Cycles since the last emitted notification
}

// Engine decides notifications and mutates the monitor state.
type Engine struct {
	eventURL string
	logger   *slog.Logger
}

// New creates a decision engine. eventURL is used as the fallback link when
// a notification carries no per-ticket links.
func New(eventURL string, logger *slog.Logger) *Engine {
	return &Engine{eventURL: eventURL, logger: logger}
}

// Decide applies the transition rules and returns the message to dispatch,
// or nil when no notification is warranted. State is always updated.
func (e *Engine) Decide(state *State, cycle *ticket.CycleResult, notifyAll bool) *ticket.Message {
	status := cycle.Status

	if state.LastStatusKnown && state.LastStatus == status {
		state.ConsecutiveSameStatus++
	} else {
		state.ConsecutiveSameStatus = 0
	}
	state.LastStatus = status
	state.LastStatusKnown = true

	ids := cycle.AvailableIDs()
	slices.Sort(ids)

	notify := false
	reason := ""
	switch {
	case !state.LastNotifiedKnown || state.LastNotifiedStatus != status:
		notify = true
		reason = "status transition"
	case notifyAll && status == ticket.StatusAvailable && !slices.Equal(ids, state.LastNotifiedIDs):
		// Same aggregate status, but a different set of tickets is on sale.
		notify = true
		reason = "available ticket set changed"
	}

	if !notify {
		e.logger.Debug("No notification needed",
			"status", status.String(),
			"consecutive_same", state.ConsecutiveSameStatus)
		return nil
	}

	e.logger.Info("Notification decided",
		"status", status.String(),
		"reason", reason,
		"available", len(cycle.Available),
		"checked", cycle.Checked)

	state.LastNotifiedStatus = status
	state.LastNotifiedKnown = true
	state.LastNotifiedIDs = ids
	state.ConsecutiveSameStatus = 0

	return e.buildMessage(cycle)
}

func (e *Engine) buildMessage(cycle *ticket.CycleResult) *ticket.Message {
	msg := &ticket.Message{
		Status:   cycle.Status,
		Subject:  "Sportstiming Ticket Alert - " + cycle.Status.String(),
		Priority: cycle.Status == ticket.StatusAvailable,
	}

	var b strings.Builder
	switch cycle.Status {
	case ticket.StatusAvailable:
		fmt.Fprintf(&b, "Tickets are available! %d of %d checked tickets are on sale.",
			len(cycle.Available), cycle.Checked)
		for _, o := range cycle.Available {
			msg.Links = append(msg.Links, o.URL)
			if o.TicketID > 0 {
				fmt.Fprintf(&b, "\nTicket %d: %s", o.TicketID, o.URL)
			}
		}
	case ticket.StatusNoTickets:
		b.WriteString("No tickets available for sale.")
	case ticket.StatusRateLimited:
		b.WriteString("Checks are being rate limited by the server; monitoring continues with an extended cooldown.")
	case ticket.StatusAuthRequired:
		b.WriteString("The ticket pages require a login session. Refresh the session cookies.")
	case ticket.StatusInvalid:
		b.WriteString("The monitored page is not a live listing (not found or closed).")
	case ticket.StatusError:
		b.WriteString("Checks are failing with network or server errors; monitoring continues.")
	}
	fmt.Fprintf(&b, "\nChecked: %d, available: %d.", cycle.Checked, len(cycle.Available))

	if len(msg.Links) == 0 {
		msg.Links = []string{e.eventURL}
	}
	msg.Body = b.String()
	return msg
}
