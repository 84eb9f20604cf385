package api

import (
	"net/http"

	"github.com/quantumlife/nostrboard/internal/session"
)

type loginRequest struct {
	PubKey      string `json:"pubkey" validate:"required"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

type accountRequest struct {
	PubKey string `json:"pubkey" validate:"required"`
}

type themeRequest struct {
	Theme string `json:"theme" validate:"required"`
}

type relayRequest struct {
	URL   string `json:"url" validate:"required"`
	Read  *bool  `json:"read"`
	Write *bool  `json:"write"`
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

// respondSession writes the session snapshot returned by a mutation.
func respondSession(w http.ResponseWriter, sess *session.Context, err error) {
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Current()
	respondSession(w, sess, err)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	sess, err := s.sessions.Login(req.PubKey, req.DisplayName)
	respondSession(w, sess, err)
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	sess, err := s.sessions.Switch(req.PubKey)
	respondSession(w, sess, err)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	sess, err := s.sessions.Logout(req.PubKey)
	respondSession(w, sess, err)
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	sess, err := s.sessions.SetTheme(req.Theme)
	respondSession(w, sess, err)
}

func (s *Server) handleGetRelays(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Current()
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Relays)
}

func (s *Server) handleAddRelay(w http.ResponseWriter, r *http.Request) {
	var req relayRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	sess, err := s.sessions.AddRelay(req.URL, boolOr(req.Read, true), boolOr(req.Write, true))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess.Relays)
}

func (s *Server) handleRemoveRelay(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.RemoveRelay(r.URL.Query().Get("url"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Relays)
}
