package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/querycache"
	"github.com/quantumlife/nostrboard/internal/stats"
)

// UserStats summarizes a user's notes and the reactions and reposts they received.
type UserStats struct {
	PubKey         string           `json:"pubkey"`
	TotalPosts     int              `json:"total_posts"`
	TotalReactions int              `json:"total_reactions"`
	TotalReposts   int              `json:"total_reposts"`
	PostsThisWeek  int              `json:"posts_this_week"`
	PostsThisMonth int              `json:"posts_this_month"`
	DailyActivity  []stats.DayCount `json:"daily_activity"`
	LastActivity   *int64           `json:"last_activity"`
	Posts          stats.Statistics `json:"posts"`
}

// Activity is the full statistics over everything a user authored, plus the
// events themselves for the explorer.
type Activity struct {
	PubKey string           `json:"pubkey"`
	Stats  stats.Statistics `json:"stats"`
	Events []core.Event     `json:"events"`
}

type userQuery struct {
	Limit  int `json:"limit"`
	Window int `json:"window,omitempty"`
}

// UserStats fetches notes, received reactions and received reposts
// concurrently. If any of the three fails, no statistics are returned.
func (s *Service) UserStats(ctx context.Context, pk string) (*UserStats, error) {
	pk, err := pubkey(pk)
	if err != nil {
		return nil, err
	}

	key := querycache.Key("user-stats", pk, userQuery{Limit: s.cfg.PostLimit, Window: s.cfg.WindowDays})
	return querycache.Typed(ctx, s.cache, key, s.cfg.UserStatsStale, func(ctx context.Context) (*UserStats, error) {
		var posts, reactions, reposts []core.Event

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			posts, err = s.fetch(gctx, s.cfg.UserTimeout, core.Filter{
				Kinds:   []int{core.KindTextNote},
				Authors: []string{pk},
				Limit:   s.cfg.PostLimit,
			})
			return err
		})
		g.Go(func() error {
			var err error
			reactions, err = s.fetch(gctx, s.cfg.UserTimeout, core.Filter{
				Kinds: []int{core.KindReaction},
				Tags:  map[string][]string{"p": {pk}},
				Limit: s.cfg.PostLimit,
			})
			return err
		})
		g.Go(func() error {
			var err error
			reposts, err = s.fetch(gctx, s.cfg.UserTimeout, core.Filter{
				Kinds: []int{core.KindRepost, core.KindGenericRepost},
				Tags:  map[string][]string{"p": {pk}},
				Limit: s.cfg.PostLimit,
			})
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("user stats %s: %w", core.ShortKey(pk), err)
		}

		st := stats.Aggregate(posts, s.now(), s.options(
			stats.FieldDays|stats.FieldKinds|stats.FieldLastActivity|stats.FieldWindows,
			s.cfg.WindowDays,
		))

		return &UserStats{
			PubKey:         pk,
			TotalPosts:     st.TotalCount,
			TotalReactions: len(reactions),
			TotalReposts:   len(reposts),
			PostsThisWeek:  st.CountSinceWeek,
			PostsThisMonth: st.CountSinceMonth,
			DailyActivity:  st.CountsByDay,
			LastActivity:   st.LastActivity,
			Posts:          st,
		}, nil
	})
}

// ActivityStats aggregates every event kind the user authored.
func (s *Service) ActivityStats(ctx context.Context, pk string) (*Activity, error) {
	pk, err := pubkey(pk)
	if err != nil {
		return nil, err
	}

	key := querycache.Key("activity", pk, userQuery{Limit: s.cfg.ActivityLimit, Window: s.cfg.WindowDays})
	return querycache.Typed(ctx, s.cache, key, s.cfg.ActivityStale, func(ctx context.Context) (*Activity, error) {
		events, err := s.fetch(ctx, s.cfg.UserTimeout, core.Filter{
			Authors: []string{pk},
			Limit:   s.cfg.ActivityLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("activity %s: %w", core.ShortKey(pk), err)
		}

		return &Activity{
			PubKey: pk,
			Stats:  stats.Aggregate(events, s.now(), s.options(stats.FieldAll, s.cfg.WindowDays)),
			Events: stats.SortNewestFirst(events),
		}, nil
	})
}

// UserEvents returns the user's latest notes, newest first. A limit of zero
// or less uses the configured default.
func (s *Service) UserEvents(ctx context.Context, pk string, limit int) ([]core.Event, error) {
	pk, err := pubkey(pk)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.EventsLimit
	}

	key := querycache.Key("user-events", pk, userQuery{Limit: limit})
	return querycache.Typed(ctx, s.cache, key, s.cfg.EventsStale, func(ctx context.Context) ([]core.Event, error) {
		events, err := s.fetch(ctx, s.cfg.UserTimeout, core.Filter{
			Kinds:   []int{core.KindTextNote},
			Authors: []string{pk},
			Limit:   limit,
		})
		if err != nil {
			return nil, fmt.Errorf("user events %s: %w", core.ShortKey(pk), err)
		}
		return stats.SortNewestFirst(events), nil
	})
}

// ExploreEvents searches the user's activity and returns one page of matches.
func (s *Service) ExploreEvents(ctx context.Context, pk, query string, page int) (stats.Page, error) {
	activity, err := s.ActivityStats(ctx, pk)
	if err != nil {
		return stats.Page{}, err
	}
	return stats.Paginate(stats.Search(activity.Events, query), page, stats.DefaultPerPage), nil
}
