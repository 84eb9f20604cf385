package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/quantumlife/nostrboard/internal/core"
)

// Stable keys for tests that need valid 32-byte hex pubkeys.
const (
	AlicePubKey = "7e7e9c42a91bfef19fa929e5fda1b72e0ebc1a4c1141673e2794234d86addf4e"
	BobPubKey   = "82341f882b6eabcd2ba7f1ef90aad961cf074af15b9ef44a09f9d2a8fbfbe6a2"
	CarolPubKey = "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
)

// RandomID generates a random 32-byte hex ID for testing.
func RandomID() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// EventFixture builds a core.Event with sensible defaults.
type EventFixture struct {
	ID        string
	PubKey    string
	Kind      int
	CreatedAt time.Time
	Content   string
	Tags      core.Tags
}

// DefaultEventFixture returns a text note by Alice created now.
func DefaultEventFixture() EventFixture {
	return EventFixture{
		ID:        RandomID(),
		PubKey:    AlicePubKey,
		Kind:      core.KindTextNote,
		CreatedAt: time.Now(),
		Content:   "gm nostr",
	}
}

// Event converts the fixture.
func (f EventFixture) Event() core.Event {
	tags := f.Tags
	if tags == nil {
		tags = core.Tags{}
	}
	return core.Event{
		ID:        f.ID,
		PubKey:    f.PubKey,
		Kind:      f.Kind,
		CreatedAt: f.CreatedAt.Unix(),
		Content:   f.Content,
		Tags:      tags,
		Sig:       "00",
	}
}

// Note returns a kind 1 event.
func Note(author, content string, at time.Time) core.Event {
	f := DefaultEventFixture()
	f.PubKey = author
	f.Content = content
	f.CreatedAt = at
	return f.Event()
}

// Reaction returns a kind 7 event by author targeting target.
func Reaction(author, target string, at time.Time) core.Event {
	f := DefaultEventFixture()
	f.PubKey = author
	f.Kind = core.KindReaction
	f.Content = "+"
	f.CreatedAt = at
	f.Tags = core.Tags{{"e", RandomID()}, {"p", target}}
	return f.Event()
}

// Repost returns a kind 6 event by author targeting target.
func Repost(author, target string, at time.Time) core.Event {
	f := DefaultEventFixture()
	f.PubKey = author
	f.Kind = core.KindRepost
	f.Content = ""
	f.CreatedAt = at
	f.Tags = core.Tags{{"e", RandomID()}, {"p", target}}
	return f.Event()
}

// Profile returns a kind 0 event with the given name fields.
func Profile(author, name, displayName string, at time.Time) core.Event {
	content, _ := json.Marshal(core.Metadata{Name: name, DisplayName: displayName})
	f := DefaultEventFixture()
	f.PubKey = author
	f.Kind = core.KindMetadata
	f.Content = string(content)
	f.CreatedAt = at
	return f.Event()
}

// ContactList returns a kind 3 event following each key.
func ContactList(author string, at time.Time, follows ...string) core.Event {
	tags := make(core.Tags, 0, len(follows))
	for _, pk := range follows {
		tags = append(tags, []string{"p", pk})
	}
	f := DefaultEventFixture()
	f.PubKey = author
	f.Kind = core.KindContacts
	f.Content = ""
	f.CreatedAt = at
	f.Tags = tags
	return f.Event()
}
