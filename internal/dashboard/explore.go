package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/logging"
	"github.com/quantumlife/nostrboard/internal/querycache"
	"github.com/quantumlife/nostrboard/internal/stats"
)

// ProfileCard is a parsed kind 0 event.
type ProfileCard struct {
	PubKey    string `json:"pubkey"`
	Npub      string `json:"npub"`
	Name      string `json:"name"`
	Picture   string `json:"picture,omitempty"`
	About     string `json:"about,omitempty"`
	NIP05     string `json:"nip05,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

// ExploreFeed is the public timeline: latest notes and profiles, newest first.
type ExploreFeed struct {
	Notes    []core.Event  `json:"notes"`
	Profiles []ProfileCard `json:"profiles"`
	Total    int           `json:"total"`
}

type exploreQuery struct {
	Kinds []int `json:"kinds"`
	Limit int   `json:"limit"`
}

// Explore returns recent notes and profiles from any author.
func (s *Service) Explore(ctx context.Context) (*ExploreFeed, error) {
	return s.explore(ctx, s.cfg.ExploreStale)
}

// RefreshExplore refetches the feed regardless of age.
func (s *Service) RefreshExplore(ctx context.Context) error {
	_, err := s.explore(ctx, 0)
	return err
}

func (s *Service) explore(ctx context.Context, stale time.Duration) (*ExploreFeed, error) {
	q := exploreQuery{Kinds: []int{core.KindTextNote, core.KindMetadata}, Limit: s.cfg.ExploreLimit}

	key := querycache.Key("explore", "", q)
	return querycache.Typed(ctx, s.cache, key, stale, func(ctx context.Context) (*ExploreFeed, error) {
		events, err := s.fetch(ctx, s.cfg.UserTimeout, core.Filter{Kinds: q.Kinds, Limit: q.Limit})
		if err != nil {
			return nil, fmt.Errorf("explore: %w", err)
		}
		return buildFeed(events), nil
	})
}

func buildFeed(events []core.Event) *ExploreFeed {
	feed := &ExploreFeed{
		Notes:    make([]core.Event, 0),
		Profiles: make([]ProfileCard, 0),
		Total:    len(events),
	}

	seen := make(map[string]bool)
	for _, e := range stats.SortNewestFirst(events) {
		switch e.Kind {
		case core.KindTextNote:
			feed.Notes = append(feed.Notes, e)
		case core.KindMetadata:
			// Only the newest profile per author counts.
			if seen[e.PubKey] {
				continue
			}
			meta, err := core.ParseMetadata(e)
			if err != nil {
				logging.Debug("skipping profile %s: %v", core.ShortKey(e.ID), err)
				continue
			}
			seen[e.PubKey] = true
			npub, _ := core.EncodeNpub(e.PubKey)
			feed.Profiles = append(feed.Profiles, ProfileCard{
				PubKey:    e.PubKey,
				Npub:      npub,
				Name:      meta.BestName(e.PubKey),
				Picture:   meta.Picture,
				About:     meta.About,
				NIP05:     meta.NIP05,
				UpdatedAt: e.CreatedAt,
			})
		}
	}
	return feed
}
