package stats

import (
	"cmp"
	"slices"
	"strings"

	"github.com/quantumlife/nostrboard/internal/core"
)

// RankEntry is one row of a top-N table.
type RankEntry[K comparable] struct {
	Key   K   `json:"key"`
	Count int `json:"count"`
}

// ByAuthor groups records by author key.
func ByAuthor(e core.Event) string { return e.PubKey }

// ByKind groups records by kind.
func ByKind(e core.Event) int { return e.Kind }

// TopN counts records per selector key and returns the n largest groups,
// highest count first. Equal counts keep the order in which their key was
// first seen. n larger than the number of groups returns every group.
func TopN[K comparable](records []core.Event, selector func(core.Event) K, n int) []RankEntry[K] {
	if n <= 0 {
		return []RankEntry[K]{}
	}

	index := make(map[K]int)
	groups := make([]RankEntry[K], 0)
	for _, e := range records {
		key := selector(e)
		if i, ok := index[key]; ok {
			groups[i].Count++
			continue
		}
		index[key] = len(groups)
		groups = append(groups, RankEntry[K]{Key: key, Count: 1})
	}

	slices.SortStableFunc(groups, func(a, b RankEntry[K]) int {
		return cmp.Compare(b.Count, a.Count)
	})

	if len(groups) > n {
		groups = groups[:n]
	}
	return groups
}

// TieBreak orders records with equal timestamps in MostRecent.
type TieBreak int

const (
	// TieBreakInput keeps input order among equal timestamps.
	TieBreakInput TieBreak = iota
	// TieBreakID puts the lexicographically smaller event ID first.
	TieBreakID
)

// String implements fmt.Stringer.
func (t TieBreak) String() string {
	switch t {
	case TieBreakInput:
		return "input"
	case TieBreakID:
		return "id"
	default:
		return "unknown"
	}
}

// ParseTieBreak maps "input" or "id" to a TieBreak.
func ParseTieBreak(s string) (TieBreak, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "input":
		return TieBreakInput, true
	case "id":
		return TieBreakID, true
	default:
		return TieBreakInput, false
	}
}

// MostRecent returns up to n records, newest first. The input slice is
// not reordered.
func MostRecent(records []core.Event, n int, tie TieBreak) []core.Event {
	if n <= 0 {
		return []core.Event{}
	}

	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b core.Event) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		if tie == TieBreakID {
			return strings.Compare(a.ID, b.ID)
		}
		return 0
	})

	if len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []core.Event{}
	}
	return out
}

// SortNewestFirst returns a copy of records ordered newest first, ties in
// input order.
func SortNewestFirst(records []core.Event) []core.Event {
	return MostRecent(records, len(records), TieBreakInput)
}
