package relay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/logging"
)

// ClientConfig holds relay client configuration
type ClientConfig struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxEvents stops collecting once this many events arrived. Zero means no cap.
	MaxEvents int
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DialTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxEvents:    5000,
	}
}

// Client queries a single relay. Each Query opens its own connection and
// subscription, so a Client is safe for concurrent use.
type Client struct {
	url     string
	cfg     ClientConfig
	dialer  *websocket.Dialer
	log     *logging.Logger
	dropped atomic.Int64
}

// NewClient creates a client for the relay at url.
func NewClient(url string, cfg ClientConfig) *Client {
	return &Client{
		url: url,
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
		log: logging.WithField("relay", url),
	}
}

// URL returns the relay address.
func (c *Client) URL() string {
	return c.url
}

// Dropped returns how many malformed events this client has discarded.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// Query sends one REQ with filters and collects events until EOSE.
func (c *Client) Query(ctx context.Context, filters []core.Filter) ([]core.Event, error) {
	start := time.Now()
	events, err := c.query(ctx, filters)

	outcome := outcomeOK
	switch {
	case err == nil:
	case errors.Is(err, core.ErrRelayClosed):
		outcome = outcomeClosed
	case ctx.Err() != nil:
		outcome = outcomeTimeout
	default:
		outcome = outcomeError
	}
	relayQueryDuration.WithLabelValues(c.url, outcome).Observe(time.Since(start).Seconds())

	return events, err
}

func (c *Client) query(ctx context.Context, filters []core.Filter) ([]core.Event, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: dial %s: %v", core.ErrSourceUnavailable, c.url, err)
	}
	defer conn.Close()

	// ReadMessage does not observe ctx; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	subID := uuid.NewString()
	if err := c.write(conn, reqFrame(subID, filters)); err != nil {
		return nil, c.connErr(ctx, "send REQ", err)
	}

	events := make([]core.Event, 0)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, c.connErr(ctx, "read", err)
		}

		env, err := parseEnvelope(data)
		if err != nil {
			c.log.Debug("ignoring malformed frame: %v", err)
			continue
		}

		switch env.Label {
		case labelEvent:
			if env.SubID != subID {
				continue
			}
			if !env.Event.Valid() {
				c.dropped.Add(1)
				relayDroppedEvents.WithLabelValues(c.url).Inc()
				continue
			}
			events = append(events, *env.Event)
			if c.cfg.MaxEvents > 0 && len(events) >= c.cfg.MaxEvents {
				c.log.Warn("stopping at %d events before EOSE", len(events))
				c.closeSub(conn, subID)
				return events, nil
			}
		case labelEOSE:
			if env.SubID != subID {
				continue
			}
			c.closeSub(conn, subID)
			return events, nil
		case labelClosed:
			if env.SubID != subID {
				continue
			}
			return nil, fmt.Errorf("%w: %s: %s", core.ErrRelayClosed, c.url, env.Message)
		case labelNotice:
			c.log.Warn("notice: %s", env.Message)
		case labelOK, labelAuth:
			// Not part of a read-only subscription.
		default:
			c.log.Debug("ignoring %q frame", env.Label)
		}
	}
}

func (c *Client) write(conn *websocket.Conn, v any) error {
	if c.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteJSON(v)
}

// closeSub is best effort: the connection is closed right after.
func (c *Client) closeSub(conn *websocket.Conn, subID string) {
	if err := c.write(conn, closeFrame(subID)); err != nil {
		c.log.Debug("send CLOSE: %v", err)
	}
}

func (c *Client) connErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %s %s: %v", core.ErrSourceUnavailable, op, c.url, err)
}
