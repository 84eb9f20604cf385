// Package core defines the fundamental types for Nostrboard.
// Records flow in from relays, get aggregated, and flow out to the dashboard.
package core

import (
	"encoding/json"
	"fmt"
	"slices"
)

// -----------------------------------------------------------------------------
// EVENT - A single signed record from the protocol
// -----------------------------------------------------------------------------

// Event is a Nostr record as delivered by a relay.
// Events are read-only once received; nothing in Nostrboard mutates them.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`     // Author, 64-char hex
	CreatedAt int64  `json:"created_at"` // Seconds since epoch
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"` // Opaque, never verified here
}

// Valid reports whether the event has the minimum shape the aggregator relies on.
func (e Event) Valid() bool {
	return e.ID != "" && e.PubKey != "" && e.Kind >= 0
}

// Tags is the ordered tag list of an event.
type Tags [][]string

// Values returns the second element of every tag named name.
func (t Tags) Values(name string) []string {
	var out []string
	for _, tag := range t {
		if len(tag) >= 2 && tag[0] == name {
			out = append(out, tag[1])
		}
	}
	return out
}

// Find returns the first tag named name.
func (t Tags) Find(name string) ([]string, bool) {
	for _, tag := range t {
		if len(tag) >= 1 && tag[0] == name {
			return tag, true
		}
	}
	return nil, false
}

// -----------------------------------------------------------------------------
// FILTER - What to ask a relay for
// -----------------------------------------------------------------------------

// Filter selects events. Empty fields mean "no constraint".
type Filter struct {
	IDs     []string            `json:"ids,omitempty"`
	Kinds   []int               `json:"kinds,omitempty"`
	Authors []string            `json:"authors,omitempty"`
	Tags    map[string][]string `json:"-"` // key is the tag letter, e.g. "p"
	Since   *int64              `json:"since,omitempty"`
	Until   *int64              `json:"until,omitempty"`
	Limit   int                 `json:"limit,omitempty"`
}

// MarshalJSON writes the filter in relay wire form, with tag
// constraints flattened into "#<letter>" keys.
func (f Filter) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	if len(f.IDs) > 0 {
		m["ids"] = f.IDs
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	if len(f.Authors) > 0 {
		m["authors"] = f.Authors
	}
	for name, values := range f.Tags {
		if len(values) > 0 {
			m["#"+name] = values
		}
	}
	if f.Since != nil {
		m["since"] = *f.Since
	}
	if f.Until != nil {
		m["until"] = *f.Until
	}
	if f.Limit > 0 {
		m["limit"] = f.Limit
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads the relay wire form.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = Filter{}
	for key, value := range raw {
		var err error
		switch {
		case key == "ids":
			err = json.Unmarshal(value, &f.IDs)
		case key == "kinds":
			err = json.Unmarshal(value, &f.Kinds)
		case key == "authors":
			err = json.Unmarshal(value, &f.Authors)
		case key == "since":
			f.Since = new(int64)
			err = json.Unmarshal(value, f.Since)
		case key == "until":
			f.Until = new(int64)
			err = json.Unmarshal(value, f.Until)
		case key == "limit":
			err = json.Unmarshal(value, &f.Limit)
		case len(key) == 2 && key[0] == '#':
			var values []string
			err = json.Unmarshal(value, &values)
			if f.Tags == nil {
				f.Tags = make(map[string][]string)
			}
			f.Tags[key[1:]] = values
		}
		if err != nil {
			return fmt.Errorf("filter field %q: %w", key, err)
		}
	}
	return nil
}

// Matches applies the filter to a single event. Limit is ignored.
func (f Filter) Matches(e Event) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, e.ID) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, e.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !slices.Contains(f.Authors, e.PubKey) {
		return false
	}
	if f.Since != nil && e.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && e.CreatedAt > *f.Until {
		return false
	}
	for name, want := range f.Tags {
		if len(want) == 0 {
			continue
		}
		found := false
		for _, v := range e.Tags.Values(name) {
			if slices.Contains(want, v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Timestamp returns a pointer to ts, for Since/Until literals.
func Timestamp(ts int64) *int64 {
	return &ts
}
