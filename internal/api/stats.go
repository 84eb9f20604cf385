package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantumlife/nostrboard/internal/core"
)

// currentUser is the path value that resolves to the session's current account.
const currentUser = "me"

const maxEventsLimit = 500

// userKey reads {pubkey}, resolving "me" through the session.
func (s *Server) userKey(r *http.Request) (string, error) {
	key := chi.URLParam(r, "pubkey")
	if key != currentUser {
		return key, nil
	}
	if s.sessions == nil {
		return "", core.ErrNotLoggedIn
	}
	sess, err := s.sessions.Current()
	if err != nil {
		return "", err
	}
	if !sess.LoggedIn {
		return "", core.ErrNotLoggedIn
	}
	return sess.Current.PubKey, nil
}

// intParam parses an optional non-negative integer query parameter.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", core.ErrInvalidInput, name)
	}
	return n, nil
}

func (s *Server) handleRelayStats(w http.ResponseWriter, r *http.Request) {
	rs, err := s.dash.RelayStats(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rs)
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	feed, err := s.dash.Explore(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, feed)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	pk, err := s.userKey(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	us, err := s.dash.UserStats(r.Context(), pk)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, us)
}

func (s *Server) handleUserActivity(w http.ResponseWriter, r *http.Request) {
	pk, err := s.userKey(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	activity, err := s.dash.ActivityStats(r.Context(), pk)
	if err != nil {
		respondErr(w, err)
		return
	}

	// Events are served by /explorer; skip them unless asked.
	if r.URL.Query().Get("events") != "true" {
		trimmed := *activity
		trimmed.Events = nil
		activity = &trimmed
	}
	respondJSON(w, http.StatusOK, activity)
}

func (s *Server) handleUserEvents(w http.ResponseWriter, r *http.Request) {
	pk, err := s.userKey(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		respondErr(w, err)
		return
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}

	events, err := s.dash.UserEvents(r.Context(), pk, limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleUserExplorer(w http.ResponseWriter, r *http.Request) {
	pk, err := s.userKey(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	page, err := intParam(r, "page")
	if err != nil {
		respondErr(w, err)
		return
	}

	result, err := s.dash.ExploreEvents(r.Context(), pk, r.URL.Query().Get("q"), page)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleFollowingExport(w http.ResponseWriter, r *http.Request) {
	pk, err := s.userKey(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	export, err := s.dash.FollowingExport(r.Context(), pk)
	if err != nil {
		respondErr(w, err)
		return
	}

	filename := fmt.Sprintf("nostr-following-%s-%s.json", export.PubKey[:8], export.ExportedAt.UTC().Format(time.DateOnly))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	respondJSON(w, http.StatusOK, export)
}
