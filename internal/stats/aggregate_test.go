package stats

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumlife/nostrboard/internal/core"
)

var testNow = time.Date(2025, time.March, 15, 15, 30, 0, 0, time.UTC)

func ev(id, author string, kind int, ts time.Time) core.Event {
	return core.Event{ID: id, PubKey: author, Kind: kind, CreatedAt: ts.Unix()}
}

func sumKinds(m map[int]int) int {
	total := 0
	for _, c := range m {
		total += c
	}
	return total
}

func sumDays(days []DayCount) int {
	total := 0
	for _, d := range days {
		total += d.Count
	}
	return total
}

// mixedRecords returns n records spread over ~60 days and a handful of kinds.
func mixedRecords(n int) []core.Event {
	out := make([]core.Event, 0, n)
	for i := 0; i < n; i++ {
		ts := testNow.Add(-time.Duration(i*7) * time.Hour)
		out = append(out, ev(fmt.Sprintf("id-%03d", i), fmt.Sprintf("author-%d", i%4), i%5, ts))
	}
	return out
}

func TestAggregate_Empty(t *testing.T) {
	st := Aggregate(nil, testNow, DefaultOptions())

	assert.Equal(t, 0, st.TotalCount)
	assert.Nil(t, st.LastActivity)
	assert.Empty(t, st.CountsByKind)
	require.Len(t, st.CountsByDay, DefaultWindowDays)
	for _, d := range st.CountsByDay {
		assert.Zero(t, d.Count, d.Date)
	}
	assert.Empty(t, st.TopAuthors)
	assert.Empty(t, st.TopKinds)
	assert.Empty(t, st.MostRecent)
	assert.Zero(t, st.ActiveDays)
}

func TestAggregate_EmptyEncodesZeroValues(t *testing.T) {
	data, err := json.Marshal(Aggregate(nil, testNow, DefaultOptions()))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.JSONEq(t, `0`, string(raw["total_count"]))
	assert.JSONEq(t, `{}`, string(raw["counts_by_kind"]))
	assert.JSONEq(t, `[]`, string(raw["top_authors"]))
	assert.JSONEq(t, `[]`, string(raw["top_kinds"]))
	assert.JSONEq(t, `[]`, string(raw["most_recent"]))
	assert.JSONEq(t, `null`, string(raw["last_activity"]))

	var days []DayCount
	require.NoError(t, json.Unmarshal(raw["counts_by_day"], &days))
	assert.Len(t, days, DefaultWindowDays)
}

func TestAggregate_Invariants(t *testing.T) {
	for _, n := range []int{0, 1, 3, 25, 200} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			records := mixedRecords(n)
			st := Aggregate(records, testNow, DefaultOptions())

			assert.Equal(t, n, st.TotalCount)
			assert.Equal(t, st.TotalCount, sumKinds(st.CountsByKind))
			assert.Len(t, st.CountsByDay, DefaultWindowDays)
			assert.LessOrEqual(t, sumDays(st.CountsByDay), st.TotalCount)
		})
	}
}

func TestAggregate_ThreeRecordsToday(t *testing.T) {
	today := testNow.Add(-2 * time.Hour)
	records := []core.Event{
		ev("a", "alice", 1, today),
		ev("b", "alice", 1, today.Add(-time.Hour)),
		ev("c", "bob", 7, today.Add(-90*time.Minute)),
	}

	st := Aggregate(records, testNow, DefaultOptions())

	assert.Equal(t, 3, st.TotalCount)
	assert.Equal(t, map[int]int{1: 2, 7: 1}, st.CountsByKind)

	last := st.CountsByDay[len(st.CountsByDay)-1]
	assert.Equal(t, "2025-03-15", last.Date)
	assert.Equal(t, 3, last.Count)
	for _, d := range st.CountsByDay[:len(st.CountsByDay)-1] {
		assert.Zero(t, d.Count, d.Date)
	}
	assert.Equal(t, 1, st.ActiveDays)
	assert.Equal(t, 2, st.UniqueAuthors)
	require.NotNil(t, st.LastActivity)
	assert.Equal(t, today.Unix(), *st.LastActivity)
}

func TestAggregate_ThirtyFiveConsecutiveDays(t *testing.T) {
	var records []core.Event
	for i := 0; i < 35; i++ {
		records = append(records, ev(fmt.Sprintf("d%d", i), "alice", 1, testNow.AddDate(0, 0, -i)))
	}

	st := Aggregate(records, testNow, Options{Window: 30})

	assert.Equal(t, 35, st.TotalCount)
	assert.Equal(t, 30, sumDays(st.CountsByDay))
	assert.Equal(t, 30, st.ActiveDays)
	assert.Equal(t, "2025-02-14", st.CountsByDay[0].Date)
	assert.Equal(t, "2025-03-15", st.CountsByDay[29].Date)
}

func TestAggregate_DayBucketsAreUTC(t *testing.T) {
	// 23:30 UTC on the 14th is still the 14th regardless of the caller's zone.
	lateEvening := time.Date(2025, time.March, 14, 23, 30, 0, 0, time.UTC)
	records := []core.Event{ev("x", "alice", 1, lateEvening)}

	tokyo := time.FixedZone("JST", 9*60*60)
	st := Aggregate(records, testNow.In(tokyo), Options{Window: 3})

	require.Len(t, st.CountsByDay, 3)
	assert.Equal(t, []string{"2025-03-13", "2025-03-14", "2025-03-15"},
		[]string{st.CountsByDay[0].Date, st.CountsByDay[1].Date, st.CountsByDay[2].Date})
	assert.Equal(t, 1, st.CountsByDay[1].Count)
	assert.Equal(t, "Mar 14", st.CountsByDay[1].Label)
}

func TestAggregate_FutureRecordsOutsideHistogram(t *testing.T) {
	records := []core.Event{ev("f", "alice", 1, testNow.Add(time.Hour))}

	st := Aggregate(records, testNow, DefaultOptions())

	assert.Equal(t, 1, st.TotalCount)
	assert.Equal(t, 0, sumDays(st.CountsByDay))
	assert.Equal(t, 1, st.CountsByKind[1])
}

func TestAggregate_Windows(t *testing.T) {
	records := []core.Event{
		ev("1", "a", 1, testNow.AddDate(0, 0, -1)),
		ev("2", "a", 1, testNow.AddDate(0, 0, -6)),
		ev("3", "a", 1, testNow.AddDate(0, 0, -8)),
		ev("4", "a", 1, testNow.AddDate(0, 0, -29)),
		ev("5", "a", 1, testNow.AddDate(0, 0, -45)),
	}

	st := Aggregate(records, testNow, Options{Fields: FieldWindows})

	assert.Equal(t, 2, st.CountSinceWeek)
	assert.Equal(t, 4, st.CountSinceMonth)
	assert.Nil(t, st.CountsByKind)
	assert.Nil(t, st.CountsByDay)
}

func TestAggregate_RequestedFieldsOnly(t *testing.T) {
	records := mixedRecords(10)

	st := Aggregate(records, testNow, Options{Fields: FieldKinds | FieldLastActivity})

	assert.Equal(t, 10, st.TotalCount)
	assert.NotEmpty(t, st.CountsByKind)
	assert.NotNil(t, st.LastActivity)
	assert.Nil(t, st.CountsByDay)
	assert.Nil(t, st.TopAuthors)
	assert.Nil(t, st.TopKinds)
	assert.Nil(t, st.MostRecent)
	assert.Zero(t, st.UniqueAuthors)
}

func TestAggregate_Idempotent(t *testing.T) {
	records := mixedRecords(50)

	first := Aggregate(records, testNow, DefaultOptions())
	second := Aggregate(records, testNow, DefaultOptions())

	assert.Equal(t, first, second)
}

func TestAggregate_ToleratesDuplicates(t *testing.T) {
	e := ev("dup", "alice", 1, testNow)
	st := Aggregate([]core.Event{e, e}, testNow, DefaultOptions())

	assert.Equal(t, 2, st.TotalCount)
	assert.Equal(t, 2, st.CountsByKind[1])
	assert.Equal(t, 1, st.UniqueAuthors)
}

func TestAggregate_DoesNotReorderInput(t *testing.T) {
	records := []core.Event{
		ev("old", "a", 1, testNow.Add(-2*time.Hour)),
		ev("new", "a", 1, testNow),
	}

	Aggregate(records, testNow, DefaultOptions())

	assert.Equal(t, "old", records[0].ID)
	assert.Equal(t, "new", records[1].ID)
}

func TestOptions_Normalized(t *testing.T) {
	o := Options{}.normalized()

	assert.Equal(t, FieldAll, o.Fields)
	assert.Equal(t, DefaultWindowDays, o.Window)
	assert.Equal(t, DefaultTopN, o.TopN)
	assert.Equal(t, DefaultRecentN, o.RecentN)
	assert.Equal(t, TieBreakInput, o.TieBreak)
}
