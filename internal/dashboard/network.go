package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/querycache"
	"github.com/quantumlife/nostrboard/internal/stats"
)

// RelayStats describes recent traffic across the configured relays.
type RelayStats struct {
	WindowDays   int              `json:"window_days"`
	Since        int64            `json:"since"`
	EventsPerDay float64          `json:"events_per_day"`
	Stats        stats.Statistics `json:"stats"`
}

type relayQuery struct {
	Window int `json:"window"`
	Limit  int `json:"limit,omitempty"`
}

// RelayStats aggregates everything published in the trailing window.
func (s *Service) RelayStats(ctx context.Context) (*RelayStats, error) {
	return s.relayStats(ctx, s.cfg.RelayStale)
}

// RefreshRelayStats refetches relay statistics regardless of age.
func (s *Service) RefreshRelayStats(ctx context.Context) error {
	_, err := s.relayStats(ctx, 0)
	return err
}

func (s *Service) relayStats(ctx context.Context, stale time.Duration) (*RelayStats, error) {
	window := s.cfg.RelayWindowDays
	if window <= 0 {
		window = 7
	}

	key := querycache.Key("relay-stats", "", relayQuery{Window: window, Limit: s.cfg.RelayLimit})
	return querycache.Typed(ctx, s.cache, key, stale, func(ctx context.Context) (*RelayStats, error) {
		now := s.now()
		since := now.Add(-time.Duration(window) * 24 * time.Hour).Unix()

		events, err := s.fetch(ctx, s.cfg.RelayTimeout, core.Filter{
			Since: core.Timestamp(since),
			Limit: s.cfg.RelayLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("relay stats: %w", err)
		}

		st := stats.Aggregate(events, now, s.options(stats.FieldAll, window))
		return &RelayStats{
			WindowDays:   window,
			Since:        since,
			EventsPerDay: float64(st.TotalCount) / float64(window),
			Stats:        st,
		}, nil
	})
}
