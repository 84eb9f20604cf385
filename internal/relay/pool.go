package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/logging"
)

// Pool fans a query out to several relays and merges the answers.
type Pool struct {
	mu      sync.RWMutex
	members []member
	cfg     ClientConfig
	limit   int
}

type member struct {
	name string
	src  Source
}

// NewPool creates a pool with one Client per url.
func NewPool(urls []string, cfg ClientConfig) *Pool {
	p := &Pool{cfg: cfg, limit: 8}
	p.SetRelays(urls)
	return p
}

// Add registers an extra source under name, replacing any member with that name.
func (p *Pool) Add(name string, src Source) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, m := range p.members {
		if m.name == name {
			p.members[i].src = src
			return
		}
	}
	p.members = append(p.members, member{name: name, src: src})
}

// SetRelays replaces the membership with clients for urls, keeping clients
// for urls that were already present.
func (p *Pool) SetRelays(urls []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing := make(map[string]Source, len(p.members))
	for _, m := range p.members {
		existing[m.name] = m.src
	}

	members := make([]member, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		src, ok := existing[u]
		if !ok {
			src = NewClient(u, p.cfg)
		}
		members = append(members, member{name: u, src: src})
	}
	p.members = members
}

// Relays lists member names in query order.
func (p *Pool) Relays() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.members))
	for i, m := range p.members {
		names[i] = m.name
	}
	return names
}

// Query asks every member concurrently. It succeeds when at least one relay
// answers; events are de-duplicated by ID, keeping the first copy in member order.
func (p *Pool) Query(ctx context.Context, filters []core.Filter) ([]core.Event, error) {
	p.mu.RLock()
	members := make([]member, len(p.members))
	copy(members, p.members)
	p.mu.RUnlock()

	if len(members) == 0 {
		return nil, core.ErrNoRelays
	}

	results := make([][]core.Event, len(members))
	errs := make([]error, len(members))

	// Relay failures are collected rather than returned so one bad relay
	// does not cancel the others.
	var g errgroup.Group
	g.SetLimit(p.limit)
	for i, m := range members {
		i, m := i, m
		g.Go(func() error {
			events, err := m.src.Query(ctx, filters)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", m.name, err)
				return nil
			}
			results[i] = events
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var (
		merged = make([]core.Event, 0)
		seen   = make(map[string]struct{})
		failed []error
	)
	for i := range members {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		for _, e := range results[i] {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			merged = append(merged, e)
		}
	}

	if len(failed) == len(members) {
		return nil, fmt.Errorf("%w: all %d relays failed: %w", core.ErrSourceUnavailable, len(members), errors.Join(failed...))
	}
	for _, err := range failed {
		logging.Warn("relay query failed: %v", err)
	}
	return merged, nil
}
