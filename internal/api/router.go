package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"energymon/internal/energy"
	"energymon/internal/events"
	"energymon/internal/mqtt"
)

// FrameSource provides the latest renderer frame
type FrameSource interface {
	Latest() energy.Frame
}

// StatusSource provides the broker connection status
type StatusSource interface {
	Status() mqtt.Status
}

// Options holds the API server dependencies
type Options struct {
	Frames   FrameSource
	Settings energy.SettingsSource
	MQTT     StatusSource
	Events   *events.Store
	Logger   *log.Logger
	Version  string
	Now      func() time.Time
}

// Server represents the read-only status API server
type Server struct {
	router  *chi.Mux
	opts    Options
	started time.Time
}

// NewServer creates the API server
func NewServer(o Options) *Server {
	if o.Now == nil {
		o.Now = time.Now
	}
	s := &Server{
		router:  chi.NewRouter(),
		opts:    o,
		started: o.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	energyHandler := NewEnergyHandler(s.opts.Frames, s.opts.Settings)
	mqttHandler := NewMQTTHandler(s.opts.MQTT)
	eventsHandler := NewEventsHandler(s.opts.Events)

	r.Get("/healthz", s.healthz)

	r.Route("/api", func(r chi.Router) {
		// Energy
		r.Get("/energy", energyHandler.Frame)
		r.Get("/energy/settings", energyHandler.Settings)

		// Broker
		r.Get("/mqtt/status", mqttHandler.Status)

		// Events
		r.Get("/events", eventsHandler.List)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// healthz reports process liveness
// GET /healthz
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"version":       s.opts.Version,
		"uptimeSeconds": int64(s.opts.Now().Sub(s.started) / time.Second),
	})
}

// Router returns the chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// writeJSON writes JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
