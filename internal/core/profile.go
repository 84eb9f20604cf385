package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// PROFILE - kind 0 metadata
// -----------------------------------------------------------------------------

// Metadata is the JSON document carried in a kind 0 event's content.
type Metadata struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	About       string `json:"about,omitempty"`
	Picture     string `json:"picture,omitempty"`
	Banner      string `json:"banner,omitempty"`
	NIP05       string `json:"nip05,omitempty"`
	Website     string `json:"website,omitempty"`
	LUD16       string `json:"lud16,omitempty"`
}

// ParseMetadata decodes a kind 0 event. Callers skip the event on error.
func ParseMetadata(e Event) (*Metadata, error) {
	if e.Kind != KindMetadata {
		return nil, fmt.Errorf("%w: kind %d is not metadata", ErrInvalidInput, e.Kind)
	}
	var m Metadata
	if err := json.Unmarshal([]byte(e.Content), &m); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", e.ID, err)
	}
	return &m, nil
}

// BestName picks display_name, then name, then a generated fallback.
func (m *Metadata) BestName(pubkey string) string {
	if m != nil {
		if n := strings.TrimSpace(m.DisplayName); n != "" {
			return n
		}
		if n := strings.TrimSpace(m.Name); n != "" {
			return n
		}
	}
	return GenUserName(pubkey)
}

// GenUserName derives a stable placeholder name from a public key.
func GenUserName(pubkey string) string {
	if len(pubkey) < 8 {
		return "anon"
	}
	return "anon-" + pubkey[:8]
}

// -----------------------------------------------------------------------------
// CONTACTS - kind 3 following list
// -----------------------------------------------------------------------------

// Contact is one "p" tag of a contact list.
type Contact struct {
	PubKey  string `json:"pubkey"`
	Relay   string `json:"relay"`
	Petname string `json:"petname"`
}

// Following extracts the contacts of a kind 3 event. Malformed p-tags
// (missing or non-hex key) are skipped.
func Following(e Event) []Contact {
	contacts := make([]Contact, 0)
	for _, tag := range e.Tags {
		if len(tag) < 2 || tag[0] != "p" || !IsHexPubKey(tag[1]) {
			continue
		}
		c := Contact{PubKey: tag[1]}
		if len(tag) > 2 {
			c.Relay = tag[2]
		}
		if len(tag) > 3 {
			c.Petname = tag[3]
		}
		contacts = append(contacts, c)
	}
	return contacts
}
