// Package dashboard answers the dashboard's queries: it fetches events from
// a relay source through the query cache and aggregates them into statistics.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/querycache"
	"github.com/quantumlife/nostrboard/internal/relay"
	"github.com/quantumlife/nostrboard/internal/stats"
)

// Config holds per-query timeouts, staleness windows and limits.
type Config struct {
	UserTimeout  time.Duration
	RelayTimeout time.Duration

	UserStatsStale time.Duration
	ActivityStale  time.Duration
	RelayStale     time.Duration
	ExploreStale   time.Duration
	EventsStale    time.Duration

	PostLimit     int
	ActivityLimit int
	RelayLimit    int
	ExploreLimit  int
	EventsLimit   int

	WindowDays      int
	RelayWindowDays int
	TopN            int
	TieBreak        stats.TieBreak
}

// DefaultConfig returns the defaults the dashboard has always used.
func DefaultConfig() Config {
	return Config{
		UserTimeout:  3 * time.Second,
		RelayTimeout: 10 * time.Second,

		UserStatsStale: 5 * time.Minute,
		ActivityStale:  5 * time.Minute,
		RelayStale:     time.Minute,
		ExploreStale:   30 * time.Second,
		EventsStale:    2 * time.Minute,

		PostLimit:     500,
		ActivityLimit: 1000,
		ExploreLimit:  100,
		EventsLimit:   50,

		WindowDays:      stats.DefaultWindowDays,
		RelayWindowDays: 7,
		TopN:            stats.DefaultTopN,
		TieBreak:        stats.TieBreakInput,
	}
}

// Service runs dashboard queries.
type Service struct {
	src   relay.Source
	cache *querycache.Cache
	cfg   Config
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now for aggregation windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a dashboard service.
func NewService(src relay.Source, cache *querycache.Cache, cfg Config, opts ...Option) *Service {
	if cache == nil {
		cache = querycache.New()
	}
	s := &Service{
		src:   src,
		cache: cache,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache exposes the query cache for stats and invalidation.
func (s *Service) Cache() *querycache.Cache {
	return s.cache
}

// fetch runs one bounded query. Errors always carry core.ErrQueryTimeout,
// core.ErrSourceUnavailable or a context error.
func (s *Service) fetch(ctx context.Context, timeout time.Duration, filters ...core.Filter) ([]core.Event, error) {
	events, err := relay.WithTimeout(s.src, timeout).Query(ctx, filters)
	if err != nil {
		return nil, classify(err)
	}
	return events, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, core.ErrQueryTimeout),
		errors.Is(err, core.ErrSourceUnavailable),
		errors.Is(err, core.ErrNoRelays),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}
}

// pubkey accepts hex or npub and returns lowercase hex.
func pubkey(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("%w: pubkey is required", core.ErrInvalidInput)
	}
	return core.NormalizePubKey(input)
}

func (s *Service) options(fields stats.Field, window int) stats.Options {
	return stats.Options{
		Fields:   fields,
		Window:   window,
		TopN:     s.cfg.TopN,
		TieBreak: s.cfg.TieBreak,
	}
}
