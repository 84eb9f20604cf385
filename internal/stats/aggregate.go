// Package stats turns a list of relay events into dashboard statistics.
//
// Everything here is a pure function of its inputs and safe for
// concurrent use. Callers pass "now" explicitly; the package never reads
// the clock.
package stats

import (
	"time"

	"github.com/quantumlife/nostrboard/internal/core"
)

// Field selects which derived values Aggregate computes.
type Field uint16

const (
	FieldKinds Field = 1 << iota
	FieldDays
	FieldTopAuthors
	FieldTopKinds
	FieldRecent
	FieldLastActivity
	FieldAuthors // unique author count
	FieldWindows // 7 and 30 day counts

	FieldAll = FieldKinds | FieldDays | FieldTopAuthors | FieldTopKinds |
		FieldRecent | FieldLastActivity | FieldAuthors | FieldWindows
)

// Has reports whether f includes every bit of other.
func (f Field) Has(other Field) bool {
	return f&other == other
}

// Defaults used when Options leaves a value unset.
const (
	DefaultWindowDays = 30
	DefaultTopN       = 10
	DefaultRecentN    = 10
)

const day = 24 * time.Hour

// Options controls a single aggregation pass.
type Options struct {
	Fields   Field    // zero means FieldAll
	Window   int      // trailing days in CountsByDay
	TopN     int      // length cap for TopAuthors and TopKinds
	RecentN  int      // length cap for MostRecent
	TieBreak TieBreak // ordering of equal timestamps in MostRecent
}

// DefaultOptions returns options that compute everything over 30 days.
func DefaultOptions() Options {
	return Options{
		Fields:   FieldAll,
		Window:   DefaultWindowDays,
		TopN:     DefaultTopN,
		RecentN:  DefaultRecentN,
		TieBreak: TieBreakInput,
	}
}

func (o Options) normalized() Options {
	if o.Fields == 0 {
		o.Fields = FieldAll
	}
	if o.Window <= 0 {
		o.Window = DefaultWindowDays
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.RecentN <= 0 {
		o.RecentN = DefaultRecentN
	}
	return o
}

// DayCount is one bucket of the daily activity histogram.
type DayCount struct {
	Date  string `json:"date"`  // UTC calendar day, 2006-01-02
	Label string `json:"label"` // display form, "Jan 2"
	Count int    `json:"count"`
}

// Statistics is the derived view of a record list. TotalCount is always
// set; other fields are only populated when requested. A requested map or
// list is never nil, so empty input encodes as {} and [] rather than null.
type Statistics struct {
	TotalCount      int                 `json:"total_count"`
	CountsByKind    map[int]int         `json:"counts_by_kind"`
	CountsByDay     []DayCount          `json:"counts_by_day"`
	TopAuthors      []RankEntry[string] `json:"top_authors"`
	TopKinds        []RankEntry[int]    `json:"top_kinds"`
	MostRecent      []core.Event        `json:"most_recent"`
	LastActivity    *int64              `json:"last_activity"`
	UniqueAuthors   int                 `json:"unique_authors"`
	ActiveDays      int                 `json:"active_days"`
	CountSinceWeek  int                 `json:"count_since_week"`
	CountSinceMonth int                 `json:"count_since_month"`
}

// Aggregate computes statistics for records as seen at now.
//
// Day buckets use UTC calendar days. A record lands in CountsByDay only if
// its timestamp is within [now - Window days, now] and its UTC day is one of
// the Window buckets ending at now's UTC day; other records still count
// toward TotalCount and CountsByKind. Duplicate or unordered input is
// counted as given.
func Aggregate(records []core.Event, now time.Time, opts Options) Statistics {
	opts = opts.normalized()
	now = now.UTC()
	nowUnix := now.Unix()

	st := Statistics{TotalCount: len(records)}

	var (
		byKind  map[int]int
		authors map[string]struct{}
		days    *dayBuckets
	)
	if opts.Fields.Has(FieldKinds) {
		byKind = make(map[int]int)
	}
	if opts.Fields.Has(FieldAuthors) {
		authors = make(map[string]struct{})
	}
	if opts.Fields.Has(FieldDays) {
		days = newDayBuckets(now, opts.Window)
	}

	weekAgo := nowUnix - int64(7*day/time.Second)
	monthAgo := nowUnix - int64(30*day/time.Second)

	for _, e := range records {
		if byKind != nil {
			byKind[e.Kind]++
		}
		if authors != nil {
			authors[e.PubKey] = struct{}{}
		}
		if days != nil {
			days.add(e.CreatedAt)
		}
		if opts.Fields.Has(FieldLastActivity) {
			if st.LastActivity == nil || e.CreatedAt > *st.LastActivity {
				ts := e.CreatedAt
				st.LastActivity = &ts
			}
		}
		if opts.Fields.Has(FieldWindows) {
			if e.CreatedAt >= weekAgo {
				st.CountSinceWeek++
			}
			if e.CreatedAt >= monthAgo {
				st.CountSinceMonth++
			}
		}
	}

	st.CountsByKind = byKind
	if authors != nil {
		st.UniqueAuthors = len(authors)
	}
	if days != nil {
		st.CountsByDay = days.list()
		for _, d := range st.CountsByDay {
			if d.Count > 0 {
				st.ActiveDays++
			}
		}
	}
	if opts.Fields.Has(FieldTopAuthors) {
		st.TopAuthors = TopN(records, ByAuthor, opts.TopN)
	}
	if opts.Fields.Has(FieldTopKinds) {
		st.TopKinds = TopN(records, ByKind, opts.TopN)
	}
	if opts.Fields.Has(FieldRecent) {
		st.MostRecent = MostRecent(records, opts.RecentN, opts.TieBreak)
	}

	return st
}

// dayBuckets is a fixed, ordered set of UTC days ending at "now".
type dayBuckets struct {
	from, to int64 // inclusive unix bounds
	index    map[string]int
	counts   []DayCount
}

func newDayBuckets(now time.Time, window int) *dayBuckets {
	b := &dayBuckets{
		from:   now.Add(-time.Duration(window) * day).Unix(),
		to:     now.Unix(),
		index:  make(map[string]int, window),
		counts: make([]DayCount, window),
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; i < window; i++ {
		d := today.AddDate(0, 0, i-(window-1))
		key := d.Format(time.DateOnly)
		b.index[key] = i
		b.counts[i] = DayCount{Date: key, Label: d.Format("Jan 2")}
	}
	return b
}

func (b *dayBuckets) add(ts int64) {
	if ts < b.from || ts > b.to {
		return
	}
	key := time.Unix(ts, 0).UTC().Format(time.DateOnly)
	if i, ok := b.index[key]; ok {
		b.counts[i].Count++
	}
}

func (b *dayBuckets) list() []DayCount {
	return b.counts
}
