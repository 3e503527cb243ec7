// Package classify turns a fetched resale page body into an availability
// verdict. It is a pure function over the page text: transport concerns
// (status codes, timeouts) belong to the fetch package.
package classify

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Known marker strings on sportstiming.dk resale pages. The site serves
// Danish by default; the English variant appears when st-lang is en-GB.
const (
	markerSoldReserved = "solgt eller reserveret. Hvis en anden kunde afbryder sit køb, kan reservationen muligvis frigives igen."
	markerNoTicketsDA  = "Der findes ingen billetter til salg"
	markerNoTicketsEN  = "No tickets for sale exists"
	markerClosedDA     = "Billetten er ikke længere til salg"
	markerClosedEN     = "This ticket is no longer for sale"
)

// MinPlausibleBodyLength is the smallest body size that could be a real
// listing page. Anything shorter is an error page or a truncated response.
const MinPlausibleBodyLength = 512

// Verdict is the classifier's three-way availability signal.
type Verdict int

const (
	// Available means no sold-out marker was found on a plausible page.
	Available Verdict = iota
	// Unavailable means the page explicitly says nothing is for sale.
	Unavailable
	// Invalid means the page is not a live listing (closed or implausible).
	Invalid
)

// String returns the verdict name for logs.
func (v Verdict) String() string {
	switch v {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// Result is a classified page.
type Result struct {
	Verdict      Verdict
	Detail       string // Human-readable reason for the verdict
	ListingCount int    // Visible ticket listings counted on the page
}

// Classify parses the page and decides whether tickets appear to be for
// sale. Parse failures and implausibly short pages are Invalid.
func Classify(body io.Reader) Result {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Result{Verdict: Invalid, Detail: "unparseable page: " + err.Error()}
	}

	text := doc.Text()
	if len(text) < MinPlausibleBodyLength {
		return Result{Verdict: Invalid, Detail: "page text implausibly short"}
	}

	switch {
	case strings.Contains(text, markerClosedDA), strings.Contains(text, markerClosedEN):
		return Result{Verdict: Invalid, Detail: "listing closed"}
	case strings.Contains(text, markerSoldReserved):
		return Result{Verdict: Unavailable, Detail: "all tickets sold or reserved"}
	case strings.Contains(text, markerNoTicketsDA), strings.Contains(text, markerNoTicketsEN):
		return Result{Verdict: Unavailable, Detail: "no tickets for sale"}
	}

	count := countListings(doc)
	detail := "no sold-out marker found, tickets may be available"
	if count > 0 || hasPriceIndicator(doc) {
		detail = "ticket listings present"
	}

	return Result{Verdict: Available, Detail: detail, ListingCount: count}
}

// countListings counts visible ticket listings using the class-name patterns
// and table-row heuristic the site has used across redesigns.
func countListings(doc *goquery.Document) int {
	patterns := []string{"ticket-item", "ticket-listing", "billet-item", "sale-item"}

	count := 0
	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		for _, p := range patterns {
			if strings.Contains(class, p) {
				count++
				return
			}
		}
	})

	// Data rows in tables also tend to be listings; skip the header row.
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr").Length()
		if rows > 1 {
			count += rows - 1
		}
	})

	return count
}

// hasPriceIndicator reports whether the page mentions Danish prices, a weak
// confirmation that a sale section is rendered.
func hasPriceIndicator(doc *goquery.Document) bool {
	lower := strings.ToLower(doc.Text())
	return strings.Contains(lower, " kr") || strings.Contains(lower, "dkk")
}
