// Package mockservers provides httptest mock servers for external APIs.
package mockservers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantumlife/nostrboard/internal/core"
)

// RelayMockServer is a minimal NIP-01 relay answering REQ from a fixed event set.
type RelayMockServer struct {
	Server *httptest.Server
	URL    string

	upgrader websocket.Upgrader
	stop     chan struct{}

	mu       sync.Mutex
	events   []core.Event
	requests [][]core.Filter
	closes   int
	closed   string
	notice   string
	delay    time.Duration
	raw      []string
}

// NewRelayMockServer starts a relay serving events.
func NewRelayMockServer(t *testing.T, events ...core.Event) *RelayMockServer {
	t.Helper()

	mock := &RelayMockServer{
		events: events,
		stop:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))
	mock.URL = "ws" + strings.TrimPrefix(mock.Server.URL, "http")

	t.Cleanup(func() {
		close(mock.stop)
		mock.Server.Close()
	})

	return mock
}

// AddEvents appends events to the served set.
func (m *RelayMockServer) AddEvents(events ...core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
}

// RefuseWith makes the relay answer every REQ with CLOSED and msg.
func (m *RelayMockServer) RefuseWith(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = msg
}

// SendNotice makes the relay send a NOTICE before matching events.
func (m *RelayMockServer) SendNotice(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notice = msg
}

// DelayEOSE holds back EOSE for d after the last event.
func (m *RelayMockServer) DelayEOSE(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SendRaw queues a raw text frame sent before matching events on every REQ.
func (m *RelayMockServer) SendRaw(frame string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = append(m.raw, frame)
}

// Requests returns the filter sets of every REQ received so far.
func (m *RelayMockServer) Requests() [][]core.Filter {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]core.Filter, len(m.requests))
	copy(out, m.requests)
	return out
}

// Closes returns how many CLOSE frames were received.
func (m *RelayMockServer) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

func (m *RelayMockServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame []json.RawMessage
		if err := json.Unmarshal(message, &frame); err != nil || len(frame) < 2 {
			continue
		}
		var label, subID string
		json.Unmarshal(frame[0], &label)
		json.Unmarshal(frame[1], &subID)

		switch label {
		case "REQ":
			filters := make([]core.Filter, 0, len(frame)-2)
			for _, raw := range frame[2:] {
				var f core.Filter
				if err := json.Unmarshal(raw, &f); err == nil {
					filters = append(filters, f)
				}
			}
			if !m.answer(conn, subID, filters) {
				return
			}
		case "CLOSE":
			m.mu.Lock()
			m.closes++
			m.mu.Unlock()
		}
	}
}

func (m *RelayMockServer) answer(conn *websocket.Conn, subID string, filters []core.Filter) bool {
	m.mu.Lock()
	m.requests = append(m.requests, filters)
	closed, notice, delay := m.closed, m.notice, m.delay
	raw := append([]string(nil), m.raw...)
	events := append([]core.Event(nil), m.events...)
	m.mu.Unlock()

	if closed != "" {
		return conn.WriteJSON([]any{"CLOSED", subID, closed}) == nil
	}
	if notice != "" {
		if conn.WriteJSON([]any{"NOTICE", notice}) != nil {
			return false
		}
	}
	for _, frame := range raw {
		if conn.WriteMessage(websocket.TextMessage, []byte(frame)) != nil {
			return false
		}
	}
	for _, e := range matching(events, filters) {
		if conn.WriteJSON([]any{"EVENT", subID, e}) != nil {
			return false
		}
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-m.stop:
			return false
		}
	}
	return conn.WriteJSON([]any{"EOSE", subID}) == nil
}

// matching applies each filter and its limit, newest first, like a relay would.
func matching(events []core.Event, filters []core.Filter) []core.Event {
	sorted := append([]core.Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt > sorted[j].CreatedAt
	})

	var out []core.Event
	seen := make(map[string]bool)
	for _, f := range filters {
		n := 0
		for _, e := range sorted {
			if f.Limit > 0 && n >= f.Limit {
				break
			}
			if !f.Matches(e) {
				continue
			}
			n++
			if !seen[e.ID] {
				seen[e.ID] = true
				out = append(out, e)
			}
		}
	}
	return out
}
