// Package fetch performs a single HTTP GET against a resale page with a
// realistic browser identity and classifies the transport outcome. It never
// retries; the scan package owns backoff policy.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sportstiming-notifier/classify"
	"sportstiming-notifier/pkg/ticket"
)

const maxBodyBytes = 2 << 20 // 2MB is far beyond any real listing page

// Result is the classified outcome of one fetch attempt.
type Result struct {
	Status       ticket.Status
	HTTPStatus   int
	Detail       string
	ListingCount int
	RetryAfter   time.Duration // From a 429's Retry-After header, 0 if absent
}

// Fetcher issues single-attempt requests with optional session cookies.
type Fetcher struct {
	client *http.Client
	creds  ticket.Credentials
	logger *slog.Logger
}

// New creates a fetcher. The client should carry a timeout (the monitor
// uses 30s); a nil client gets a sane default.
func New(client *http.Client, creds ticket.Credentials, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client, creds: creds, logger: logger}
}

// Do fetches one URL and classifies the response.
func (f *Fetcher) Do(ctx context.Context, pageURL string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return Result{Status: ticket.StatusError, Detail: "create request: " + err.Error()}
	}

	// Chrome-like headers so the request is indistinguishable from a browser.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "da-DK,da;q=0.9,en-US;q=0.8,en;q=0.7")
	// Note: Don't set Accept-Encoding - let Go's http.Client handle compression automatically
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Cookie", f.cookieHeader())

	start := time.Now()
	resp, err := f.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		f.logger.Warn("HTTP request failed",
			"url", pageURL,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return Result{Status: ticket.StatusError, Detail: "request failed: " + err.Error()}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	f.logger.Info("HTTP request completed",
		"url", pageURL,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"content_length", resp.ContentLength)

	switch {
	case resp.StatusCode == http.StatusForbidden:
		if f.creds.Empty() {
			return Result{
				Status:     ticket.StatusAuthRequired,
				HTTPStatus: resp.StatusCode,
				Detail:     "page requires a login session; supply AUTH_COOKIES",
			}
		}
		// Credentials were sent and still rejected: most likely an expired
		// auth token rather than a page that needs login.
		return Result{
			Status:     ticket.StatusError,
			HTTPStatus: resp.StatusCode,
			Detail:     "403 despite session cookies; refresh AUTH_COOKIES",
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{
			Status:     ticket.StatusRateLimited,
			HTTPStatus: resp.StatusCode,
			Detail:     "server throttled the request",
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}

	case resp.StatusCode == http.StatusNotFound:
		return Result{
			Status:     ticket.StatusInvalid,
			HTTPStatus: resp.StatusCode,
			Detail:     "page not found",
		}

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Result{
			Status:     ticket.StatusError,
			HTTPStatus: resp.StatusCode,
			Detail:     fmt.Sprintf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	verdict := classify.Classify(body)

	f.logger.Info("Page classified",
		"url", pageURL,
		"verdict", verdict.Verdict.String(),
		"listing_count", verdict.ListingCount,
		"detail", verdict.Detail)

	res := Result{
		HTTPStatus:   resp.StatusCode,
		Detail:       verdict.Detail,
		ListingCount: verdict.ListingCount,
	}
	switch verdict.Verdict {
	case classify.Available:
		res.Status = ticket.StatusAvailable
	case classify.Unavailable:
		res.Status = ticket.StatusNoTickets
	case classify.Invalid:
		res.Status = ticket.StatusInvalid
	}
	return res
}

// cookieHeader assembles the Cookie header. st-lang pins the site to
// English so both marker variants stay matchable.
func (f *Fetcher) cookieHeader() string {
	parts := []string{"cookies_allowed=required", "st-lang=en-GB"}
	if f.creds.SessionID != "" {
		parts = append(parts, "st-sessionids2="+f.creds.SessionID)
	}
	if f.creds.AuthToken != "" {
		parts = append(parts, "st-auth-s2="+f.creds.AuthToken)
	}
	return strings.Join(parts, "; ")
}

// parseRetryAfter handles the delta-seconds form of Retry-After. The HTTP
// date form is rare on throttle responses and is ignored.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
