package scan

import (
	"context"
	"testing"
	"time"

	"sportstiming-notifier/fetch"
	"sportstiming-notifier/pkg/ticket"
)

// fakeChecker serves canned fetch results per URL and records request order.
type fakeChecker struct {
	results   map[string]fetch.Result
	requested []string
	cancelAt  int // When > 0, cancel this context after that many requests
	cancel    context.CancelFunc
}

func (f *fakeChecker) Do(_ context.Context, pageURL string) fetch.Result {
	f.requested = append(f.requested, pageURL)
	if f.cancelAt > 0 && len(f.requested) == f.cancelAt {
		f.cancel()
	}
	if r, ok := f.results[pageURL]; ok {
		return r
	}
	return fetch.Result{Status: ticket.StatusNoTickets, Detail: "no tickets for sale"}
}

func rangeTarget(start, end int) ticket.Target {
	return ticket.Target{
		URL:         "https://www.sportstiming.dk/event/6583/resale",
		URLTemplate: "https://www.sportstiming.dk/event/6583/resale/ticket/%d",
		RangeStart:  start,
		RangeEnd:    end,
	}
}

func newTestScanner(checker Checker) *Scanner {
	s := New(checker, newTestBackoff(&captureSleeper{}), 0, testLogger())
	s.sleep = (&captureSleeper{}).sleep
	return s
}

func TestScanRangeCompleteness(t *testing.T) {
	target := rangeTarget(100, 105)
	checker := &fakeChecker{results: map[string]fetch.Result{
		target.TicketURL(102): {Status: ticket.StatusInvalid, HTTPStatus: 404},
		target.TicketURL(104): {Status: ticket.StatusAvailable, ListingCount: 1},
	}}

	result, err := newTestScanner(checker).Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != ticket.StatusAvailable {
		t.Errorf("overall status = %s, want AVAILABLE", result.Status)
	}
	if result.Checked != 6 {
		t.Errorf("checked = %d, want 6", result.Checked)
	}
	ids := result.AvailableIDs()
	if len(ids) != 1 || ids[0] != 104 {
		t.Errorf("available IDs = %v, want [104]", ids)
	}
	// Every ID must have been attempted despite 102's failure.
	if len(checker.requested) != 6 {
		t.Fatalf("requested %d URLs, want 6: %v", len(checker.requested), checker.requested)
	}
	for i, id := range []int{100, 101, 102, 103, 104, 105} {
		if checker.requested[i] != target.TicketURL(id) {
			t.Errorf("request %d = %s, want %s", i, checker.requested[i], target.TicketURL(id))
		}
	}
}

func TestScanAggregateFirstFailureWins(t *testing.T) {
	target := rangeTarget(200, 203)
	checker := &fakeChecker{results: map[string]fetch.Result{
		target.TicketURL(201): {Status: ticket.StatusError, Detail: "timeout"},
		target.TicketURL(202): {Status: ticket.StatusInvalid},
	}}

	result, err := newTestScanner(checker).Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != ticket.StatusError {
		t.Errorf("overall status = %s, want ERROR (first non-success encountered)", result.Status)
	}
}

func TestScanRateLimitFlagSurvivesAvailability(t *testing.T) {
	target := rangeTarget(250, 252)
	checker := &fakeChecker{results: map[string]fetch.Result{
		target.TicketURL(250): {Status: ticket.StatusRateLimited, HTTPStatus: 429},
		target.TicketURL(251): {Status: ticket.StatusAvailable, ListingCount: 1},
	}}

	result, err := newTestScanner(checker).Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != ticket.StatusAvailable {
		t.Errorf("overall status = %s, want AVAILABLE", result.Status)
	}
	if !result.RateLimited() {
		t.Error("cycle with a terminally rate-limited ID must report RateLimited()")
	}
}

func TestScanAllClean(t *testing.T) {
	target := rangeTarget(300, 302)
	checker := &fakeChecker{}

	result, err := newTestScanner(checker).Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != ticket.StatusNoTickets {
		t.Errorf("overall status = %s, want NO_TICKETS", result.Status)
	}
	if len(result.Available) != 0 {
		t.Errorf("available = %v, want empty", result.Available)
	}
}

func TestScanSingleMode(t *testing.T) {
	target := ticket.Target{URL: "https://www.sportstiming.dk/event/6583/resale"}
	checker := &fakeChecker{results: map[string]fetch.Result{
		target.URL: {Status: ticket.StatusAvailable, ListingCount: 3},
	}}

	result, err := newTestScanner(checker).Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Checked != 1 {
		t.Errorf("checked = %d, want 1", result.Checked)
	}
	if result.Status != ticket.StatusAvailable {
		t.Errorf("status = %s, want AVAILABLE", result.Status)
	}
	if len(result.Available) != 1 || result.Available[0].TicketID != 0 {
		t.Errorf("available = %v, want single outcome with ID 0", result.Available)
	}
}

func TestScanStopsBetweenRequestsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target := rangeTarget(400, 409)
	checker := &fakeChecker{cancelAt: 3, cancel: cancel}

	result, err := newTestScanner(checker).Scan(ctx, target)

	if err == nil {
		t.Fatal("expected context error on cancellation")
	}
	if len(checker.requested) != 3 {
		t.Errorf("requested %d URLs after cancellation, want 3", len(checker.requested))
	}
	if result.Checked != 3 {
		t.Errorf("checked = %d, want 3 (partial result)", result.Checked)
	}
}

func TestScanCourtesyPauseBetweenRequests(t *testing.T) {
	target := rangeTarget(500, 503)
	checker := &fakeChecker{}
	sleeper := &captureSleeper{}

	s := New(checker, newTestBackoff(&captureSleeper{}), 1500*time.Millisecond, testLogger())
	s.sleep = sleeper.sleep

	if _, err := s.Scan(context.Background(), target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A pause before every request except the first.
	if len(sleeper.slept) != 3 {
		t.Fatalf("expected 3 pauses for 4 requests, got %v", sleeper.slept)
	}
	for i, d := range sleeper.slept {
		if d != 1500*time.Millisecond {
			t.Errorf("pause %d = %v, want 1.5s", i, d)
		}
	}
}
