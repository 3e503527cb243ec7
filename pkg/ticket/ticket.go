// Package ticket contains the core domain types for the sportstiming resale
// ticket notification service.
package ticket

import (
	"fmt"
	"time"
)

// Status is the normalized outcome of a single check, independent of
// transport detail. The set is closed: every consumer switches exhaustively.
type Status int

const (
	// StatusAvailable means at least one ticket appears to be for sale.
	StatusAvailable Status = iota
	// StatusNoTickets means the page loaded but no tickets are for sale.
	StatusNoTickets
	// StatusRateLimited means the server throttled us (HTTP 429).
	StatusRateLimited
	// StatusAuthRequired means the page needs a login session (HTTP 403).
	StatusAuthRequired
	// StatusInvalid means the ticket page does not exist or is not a
	// plausible listing page (HTTP 404, closed listing, truncated body).
	StatusInvalid
	// StatusError means a transport-level failure (timeout, DNS, reset).
	StatusError
)

// String returns the canonical wire/log name for a status.
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "AVAILABLE"
	case StatusNoTickets:
		return "NO_TICKETS"
	case StatusRateLimited:
		return "RATE_LIMITED"
	case StatusAuthRequired:
		return "AUTH_REQUIRED"
	case StatusInvalid:
		return "INVALID"
	case StatusError:
		return "ERROR"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// CheckOutcome is the result of one fetch-and-classify attempt for one
// target URL or ticket ID. Never mutated after construction.
type CheckOutcome struct {
	CheckedAt    time.Time     // When the check completed
	Status       Status        // Normalized outcome
	HTTPStatus   int           // Underlying HTTP status code (0 on transport error)
	Detail       string        // Human-readable detail for logs and messages
	TicketID     int           // Ticket ID in range mode (0 in single-URL mode)
	URL          string        // The URL that was checked
	ListingCount int           // Visible ticket listings counted on the page
	RetryAfter   time.Duration // Server-supplied Retry-After hint (0 if absent)
}

// CycleResult aggregates all check outcomes of one polling cycle.
type CycleResult struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       Status         // Derived overall status
	Available    []CheckOutcome // Outcomes with StatusAvailable, ascending ID order
	Checked      int            // How many targets were attempted
	SawRateLimit bool           // Any outcome was terminally rate-limited
}

// RateLimited reports whether any outcome in the cycle was terminally
// rate-limited, which triggers the scheduler's extended cooldown. The
// overall status may still be AVAILABLE when other IDs succeeded.
func (c *CycleResult) RateLimited() bool {
	return c.SawRateLimit || c.Status == StatusRateLimited
}

// AvailableIDs returns the ticket IDs of all available outcomes in the
// order they were scanned (ascending in range mode).
func (c *CycleResult) AvailableIDs() []int {
	ids := make([]int, 0, len(c.Available))
	for _, o := range c.Available {
		ids = append(ids, o.TicketID)
	}
	return ids
}

// Target describes what the process monitors. Set at startup, immutable
// afterwards. Either URL is set (single mode) or RangeStart/RangeEnd with
// URLTemplate (range mode).
type Target struct {
	URL         string // Event resale page (single mode)
	URLTemplate string // Per-ticket URL template with one %d verb (range mode)
	RangeStart  int    // First ticket ID, inclusive
	RangeEnd    int    // Last ticket ID, inclusive
}

// RangeMode reports whether the target is a ticket ID range.
func (t Target) RangeMode() bool {
	return t.RangeEnd > 0
}

// TicketURL renders the per-ticket URL for an ID in range mode.
func (t Target) TicketURL(id int) string {
	return fmt.Sprintf(t.URLTemplate, id)
}

// Credentials are the optional session cookies for pages behind a login.
// Both values are opaque; they are only ever echoed back in a Cookie header.
type Credentials struct {
	SessionID string // st-sessionids2 cookie value
	AuthToken string // st-auth-s2 cookie value (a short-lived JWT)
}

// Empty reports whether no session credentials were supplied.
func (c Credentials) Empty() bool {
	return c.SessionID == "" && c.AuthToken == ""
}

// Message is a decided notification, ready for channel-specific rendering.
type Message struct {
	Status   Status
	Subject  string
	Body     string
	Links    []string // Direct links to available tickets (or the event page)
	Priority bool     // Raised delivery priority (tickets available)
}
