package stats

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantumlife/nostrboard/internal/core"
)

func notes(contents ...string) []core.Event {
	out := make([]core.Event, len(contents))
	for i, c := range contents {
		out[i] = core.Event{ID: fmt.Sprintf("n%d", i), PubKey: "a", Kind: 1, Content: c}
	}
	return out
}

func TestSearch(t *testing.T) {
	records := notes("GM nostr", "", "gm friends", "hello world")

	tests := []struct {
		query string
		want  int
	}{
		{"", 4},
		{"   ", 4},
		{"gm", 2},
		{"  WORLD ", 1},
		{"missing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Len(t, Search(records, tt.query), tt.want)
		})
	}
}

func TestPaginate(t *testing.T) {
	records := notes(make([]string, 45)...)

	tests := []struct {
		name      string
		page      int
		wantPage  int
		wantCount int
	}{
		{"first", 1, 1, 20},
		{"last partial", 3, 3, 5},
		{"below range", -4, 1, 20},
		{"above range", 99, 3, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(records, tt.page, 0)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Len(t, p.Events, tt.wantCount)
			assert.Equal(t, 3, p.TotalPages)
			assert.Equal(t, 45, p.TotalEvents)
			assert.Equal(t, DefaultPerPage, p.PerPage)
		})
	}
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate(nil, 5, 10)

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 1, p.TotalPages)
	assert.Equal(t, 0, p.TotalEvents)
	assert.NotNil(t, p.Events)
	assert.Empty(t, p.Events)
}
