package stats

import (
	"strings"

	"github.com/quantumlife/nostrboard/internal/core"
)

// DefaultPerPage is the event explorer page size.
const DefaultPerPage = 20

// Page is one page of explorer results.
type Page struct {
	Events      []core.Event `json:"events"`
	Page        int          `json:"page"`
	PerPage     int          `json:"per_page"`
	TotalPages  int          `json:"total_pages"`
	TotalEvents int          `json:"total_events"`
}

// Search keeps records whose content contains query, ignoring case.
// A blank query returns records unchanged.
func Search(records []core.Event, query string) []core.Event {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return records
	}

	out := make([]core.Event, 0)
	for _, e := range records {
		if e.Content == "" {
			continue
		}
		if strings.Contains(strings.ToLower(e.Content), q) {
			out = append(out, e)
		}
	}
	return out
}

// Paginate slices records into pages. page is clamped into range, and
// there is always at least one (possibly empty) page.
func Paginate(records []core.Event, page, perPage int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	totalPages := (len(records) + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	page = min(max(page, 1), totalPages)

	start := (page - 1) * perPage
	end := min(start+perPage, len(records))

	events := make([]core.Event, 0, end-start)
	events = append(events, records[start:end]...)

	return Page{
		Events:      events,
		Page:        page,
		PerPage:     perPage,
		TotalPages:  totalPages,
		TotalEvents: len(records),
	}
}
