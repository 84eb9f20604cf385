// Package app wires storage, session, relay pool, query cache and the
// dashboard service from a loaded configuration.
package app

import (
	"fmt"

	"github.com/quantumlife/nostrboard/internal/config"
	"github.com/quantumlife/nostrboard/internal/dashboard"
	"github.com/quantumlife/nostrboard/internal/logging"
	"github.com/quantumlife/nostrboard/internal/querycache"
	"github.com/quantumlife/nostrboard/internal/relay"
	"github.com/quantumlife/nostrboard/internal/session"
	"github.com/quantumlife/nostrboard/internal/storage"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	DB        *storage.DB
	Sessions  *session.Manager
	Pool      *relay.Pool
	Cache     *querycache.Cache
	Dashboard *dashboard.Service
}

// Options adjusts how the app is opened.
type Options struct {
	// InMemory keeps the database in memory.
	InMemory bool
	// Source replaces the relay pool as the dashboard's record source.
	Source relay.Source
}

// Open opens the database, seeds relays on first start and builds the
// query stack. The relay pool follows relay list changes made through
// Sessions.
func Open(cfg *config.Config, opts Options) (*App, error) {
	db, err := storage.Open(storage.Config{Path: cfg.DatabasePath(), InMemory: opts.InMemory})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	sessions := session.NewManager(db)
	if err := sessions.SeedRelays(cfg.Relays); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed relays: %w", err)
	}

	sess, err := sessions.Current()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load session: %w", err)
	}

	cache := querycache.New(querycache.WithMaxEntries(cfg.Cache.MaxEntries))

	pool := relay.NewPool(sess.ReadRelays(), cfg.RelayClient())
	sessions.OnRelaysChanged(func(urls []string) {
		pool.SetRelays(urls)
		// Cached results came from the old relay set.
		cache.Purge()
		logging.WithField("relays", len(urls)).Info("relay pool updated, cache purged")
	})

	var src relay.Source = pool
	if opts.Source != nil {
		src = opts.Source
	}

	return &App{
		Config:    cfg,
		DB:        db,
		Sessions:  sessions,
		Pool:      pool,
		Cache:     cache,
		Dashboard: dashboard.NewService(src, cache, cfg.Dashboard()),
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}
