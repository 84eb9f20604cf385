// Package api provides the HTTP API server for Nostrboard.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/dashboard"
	"github.com/quantumlife/nostrboard/internal/logging"
	"github.com/quantumlife/nostrboard/internal/scheduler"
	"github.com/quantumlife/nostrboard/internal/session"
	"github.com/quantumlife/nostrboard/internal/storage"
)

var validate = validator.New()

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	// Components
	dash      *dashboard.Service
	sessions  *session.Manager
	scheduler *scheduler.Scheduler
	db        *storage.DB
	wsHub     *WebSocketHub

	corsOrigins []string
	started     time.Time
}

// Config for the server
type Config struct {
	Addr        string
	Dashboard   *dashboard.Service
	Sessions    *session.Manager
	Scheduler   *scheduler.Scheduler // optional; enables /refresh routes
	Database    *storage.DB          // optional; reported by /health
	CORSOrigins []string
}

// New creates a new API server
func New(cfg Config) *Server {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		dash:        cfg.Dashboard,
		sessions:    cfg.Sessions,
		scheduler:   cfg.Scheduler,
		db:          cfg.Database,
		wsHub:       NewWebSocketHub(),
		corsOrigins: origins,
		started:     time.Now(),
	}

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger routes chi's request log lines into the logging package.
type requestLogger struct{}

func (requestLogger) Print(v ...interface{}) {
	logging.WithField("component", "http").Debug("%s", fmt.Sprint(v...))
}

// setupRouter configures all routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: requestLogger{}, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Statistics
		r.Get("/stats/relay", s.handleRelayStats)
		r.Get("/explore", s.handleExplore)

		r.Route("/users/{pubkey}", func(r chi.Router) {
			r.Get("/stats", s.handleUserStats)
			r.Get("/activity", s.handleUserActivity)
			r.Get("/events", s.handleUserEvents)
			r.Get("/explorer", s.handleUserExplorer)
			r.Get("/following/export", s.handleFollowingExport)
		})

		// Session
		if s.sessions != nil {
			r.Get("/session", s.handleGetSession)
			r.Post("/session/login", s.handleLogin)
			r.Post("/session/switch", s.handleSwitch)
			r.Post("/session/logout", s.handleLogout)
			r.Put("/session/theme", s.handleSetTheme)

			r.Get("/relays", s.handleGetRelays)
			r.Post("/relays", s.handleAddRelay)
			r.Delete("/relays", s.handleRemoveRelay)
		}

		// Background refresh
		if s.scheduler != nil {
			r.Get("/refresh", s.handleListRefresh)
			r.Post("/refresh/{task}", s.handleRunRefresh)
		}

		// Reference
		r.Get("/kinds", s.handleGetKinds)
		r.Get("/health", s.handleHealth)
	})

	r.Handle("/metrics", promhttp.Handler())

	// WebSocket
	r.Get("/ws", s.wsHub.ServeHTTP)

	s.router = r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	// Start WebSocket hub
	go s.wsHub.Run()

	logging.Info("API server starting on http://%s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.wsHub.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Broadcast sends a message to all WebSocket clients
func (s *Server) Broadcast(msgType string, data interface{}) {
	s.wsHub.Broadcast(WebSocketMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// --- Response helpers ---

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusClientClosedRequest is nginx's code for a client that went away
// before the response was ready.
const statusClientClosedRequest = 499

// respondErr maps domain errors to HTTP status codes.
func respondErr(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	switch {
	case status == statusClientClosedRequest:
		logging.Debug("request abandoned by client: %v", err)
	case status >= http.StatusInternalServerError:
		logging.WithField("status", status).Warn("request failed: %v", err)
	}
	respondError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrInvalidPubKey),
		errors.Is(err, core.ErrInvalidTheme):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrAccountNotFound),
		errors.Is(err, core.ErrRecordNotFound),
		errors.Is(err, core.ErrContactListNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrQueryTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, core.ErrSourceUnavailable),
		errors.Is(err, core.ErrNoRelays),
		errors.Is(err, core.ErrRelayClosed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads and validates a request body.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", core.ErrInvalidInput, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return nil
}

// --- Reference handlers ---

type kindInfo struct {
	Kind  int    `json:"kind"`
	Label string `json:"label"`
}

func (s *Server) handleGetKinds(w http.ResponseWriter, r *http.Request) {
	labels := core.KindLabels()
	kinds := make([]kindInfo, 0, len(labels))
	for k, label := range labels {
		kinds = append(kinds, kindInfo{Kind: k, Label: label})
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Kind < kinds[j].Kind })

	respondJSON(w, http.StatusOK, kinds)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":     "ok",
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"ws_clients": s.wsHub.ClientCount(),
	}
	if s.dash != nil {
		health["cache"] = s.dash.Cache().Stats()
	}

	status := http.StatusOK
	if s.db != nil {
		database := map[string]string{"status": "ok"}
		if err := s.db.Ping(r.Context()); err != nil {
			database["status"] = "unavailable"
			database["error"] = err.Error()
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if version, err := s.db.SchemaVersion(); err == nil {
			database["schema"] = version
		}
		health["database"] = database
	}
	respondJSON(w, status, health)
}

// --- Refresh handlers ---

func (s *Server) handleListRefresh(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats": s.scheduler.GetStats(),
		"tasks": s.scheduler.Snapshot(),
	})
}

func (s *Server) handleRunRefresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task")
	if _, ok := s.scheduler.GetTask(id); !ok {
		respondError(w, http.StatusNotFound, "unknown refresh task: "+id)
		return
	}
	if err := s.scheduler.RunNow(id); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled", "task": id})
}
