package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"

	"incident-review/internal/assistant"
	"incident-review/internal/cache"
	"incident-review/internal/chart"
	"incident-review/internal/db"
	"incident-review/internal/models"
	"incident-review/internal/playback"
	"incident-review/internal/websocket"
)

// Deps are the collaborators a Server serves from.
type Deps struct {
	DB       *db.Database
	Incident models.Incident
	Samples  []models.TelemetrySample
	Reports  []models.Report
	Session  *playback.Session
	Chat     *assistant.Service
	Charts   *chart.Renderer
	Cache    *cache.Cache
	Hub      *websocket.Hub
}

// Server represents the API server
type Server struct {
	db       *db.Database
	incident models.Incident
	samples  []models.TelemetrySample
	reports  []models.Report
	session  *playback.Session
	chat     *assistant.Service
	charts   *chart.Renderer
	cache    *cache.Cache
	hub      *websocket.Hub
	router   *mux.Router
}

// NewServer creates a new API server
func NewServer(d Deps) *Server {
	s := &Server{
		db:       d.DB,
		incident: d.Incident,
		samples:  d.Samples,
		reports:  d.Reports,
		session:  d.Session,
		chat:     d.Chat,
		charts:   d.Charts,
		cache:    d.Cache,
		hub:      d.Hub,
		router:   mux.NewRouter(),
	}
	if s.charts == nil {
		s.charts = chart.NewRenderer(2)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	// Dashboard and live updates
	s.router.HandleFunc("/", s.handleDashboard).Methods("GET")
	if s.hub != nil {
		s.router.Handle("/ws", websocket.NewHandler(s.hub)).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(jsonMiddleware)
	s.router.Handle("/health", jsonMiddleware(http.HandlerFunc(s.handleHealth))).Methods("GET")

	// Incident endpoints
	api.HandleFunc("/incident", s.handleIncident).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Timeline endpoints
	api.HandleFunc("/samples", s.handleSamples).Methods("GET")
	api.HandleFunc("/samples/current", s.handleCurrentSample).Methods("GET")
	api.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	api.HandleFunc("/table", s.handleTable).Methods("GET")
	api.HandleFunc("/reports", s.handleReports).Methods("GET")
	api.HandleFunc("/frame", s.handleFrame).Methods("GET")
	api.HandleFunc("/chart.png", s.handleChart(chart.PNG)).Methods("GET")
	api.HandleFunc("/chart.svg", s.handleChart(chart.SVG)).Methods("GET")

	// Playback endpoints
	api.HandleFunc("/playback", s.handlePlaybackState).Methods("GET")
	api.HandleFunc("/playback/seek", s.handleSeek).Methods("POST")
	api.HandleFunc("/playback/toggle", s.handleToggle).Methods("POST")
	api.HandleFunc("/playback/skip", s.handleSkip).Methods("POST")

	// Chat endpoints
	api.HandleFunc("/chat/sessions", s.handleCreateChatSession).Methods("POST")
	api.HandleFunc("/chat/sessions/{id}", s.handleGetChatSession).Methods("GET")
	api.HandleFunc("/chat/sessions/{id}/messages", s.handlePostChatMessage).Methods("POST")
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Middleware
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *meta       `json:"meta,omitempty"`
}

type meta struct {
	Total   int     `json:"total,omitempty"`
	Time    float64 `json:"time,omitempty"`
	QueryMs int64   `json:"query_ms,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

func respondWithMeta(w http.ResponseWriter, data interface{}, m *meta) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Meta: m})
}

var errBadTime = errors.New("t must be a number of seconds")

// playbackTime reads ?t=, defaulting to the session clock.
func (s *Server) playbackTime(r *http.Request) (float64, error) {
	v := r.URL.Query().Get("t")
	if v == "" {
		return s.session.Clock.CurrentTime(), nil
	}
	t, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, errBadTime
	}
	return t, nil
}
