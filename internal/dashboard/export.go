package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/stats"
)

// FollowingExport is the backup document for a user's contact list.
type FollowingExport struct {
	ExportedAt time.Time      `json:"exported_at"`
	PubKey     string         `json:"pubkey"`
	Npub       string         `json:"npub"`
	Event      core.Event     `json:"event"`
	Following  []core.Contact `json:"following"`
	Stats      ExportStats    `json:"stats"`
}

// ExportStats summarizes the exported list.
type ExportStats struct {
	TotalFollowing int       `json:"total_following"`
	WithRelay      int       `json:"with_relay"`
	WithPetname    int       `json:"with_petname"`
	EventCreatedAt time.Time `json:"event_created_at"`
}

// FollowingExport fetches the user's latest contact list. It always goes to
// the source so the backup reflects the current list.
func (s *Service) FollowingExport(ctx context.Context, pk string) (*FollowingExport, error) {
	pk, err := pubkey(pk)
	if err != nil {
		return nil, err
	}

	events, err := s.fetch(ctx, s.cfg.UserTimeout, core.Filter{
		Kinds:   []int{core.KindContacts},
		Authors: []string{pk},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("contact list %s: %w", core.ShortKey(pk), err)
	}

	// Relays may ignore the limit or return stale replaceable events.
	latest := stats.MostRecent(events, 1, stats.TieBreakID)
	if len(latest) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrContactListNotFound, core.ShortKey(pk))
	}
	contacts := latest[0]

	following := core.Following(contacts)
	st := ExportStats{
		TotalFollowing: len(following),
		EventCreatedAt: time.Unix(contacts.CreatedAt, 0).UTC(),
	}
	for _, c := range following {
		if c.Relay != "" {
			st.WithRelay++
		}
		if c.Petname != "" {
			st.WithPetname++
		}
	}

	npub, _ := core.EncodeNpub(pk)
	return &FollowingExport{
		ExportedAt: s.now().UTC(),
		PubKey:     pk,
		Npub:       npub,
		Event:      contacts,
		Following:  following,
		Stats:      st,
	}, nil
}
