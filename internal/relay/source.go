// Package relay fetches Nostr events from relays over websockets.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantumlife/nostrboard/internal/core"
)

// Source answers filter queries with the matching events.
type Source interface {
	Query(ctx context.Context, filters []core.Filter) ([]core.Event, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, filters []core.Filter) ([]core.Event, error)

func (f SourceFunc) Query(ctx context.Context, filters []core.Filter) ([]core.Event, error) {
	return f(ctx, filters)
}

// WithTimeout bounds every query on src by d as well as by the caller's context.
// A query that runs out of time returns core.ErrQueryTimeout and no events.
func WithTimeout(src Source, d time.Duration) Source {
	if d <= 0 {
		return src
	}
	return &timeoutSource{src: src, timeout: d}
}

type timeoutSource struct {
	src     Source
	timeout time.Duration
}

func (t *timeoutSource) Query(ctx context.Context, filters []core.Filter) ([]core.Event, error) {
	qctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	events, err := t.src.Query(qctx, filters)
	if err == nil && qctx.Err() == nil {
		return events, nil
	}

	// The caller gave up first: report that rather than our own deadline.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(qctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", core.ErrQueryTimeout, t.timeout)
	}
	return nil, err
}
