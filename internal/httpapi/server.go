package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"subtrans/internal/config"
	"subtrans/internal/daemon"
	"subtrans/internal/logging"
	"subtrans/internal/services"
)

// Server is the HTTP API in front of a daemon.
type Server struct {
	bind      string
	token     string
	origins   []string
	logger    *slog.Logger
	daemon    *daemon.Daemon
	keepAlive time.Duration

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New builds the API server from the [api] config section.
func New(cfg *config.Config, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("http api requires config and daemon")
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, errors.New("api.bind is required")
	}
	return &Server{
		bind:      bind,
		token:     cfg.API.Token,
		origins:   cfg.API.AllowedOrigins,
		logger:    logging.NewComponentLogger(logger, "api-server"),
		daemon:    d,
		keepAlive: 15 * time.Second,
	}, nil
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(corsOptions(s.origins)))

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.token))

		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(maxBodySize)

			r.Get("/queue", s.handleQueue)
			r.Post("/queue", s.handleEnqueue)
			r.Get("/queue/counts", s.handleCounts)
			r.Get("/queue/active", s.handleActive)
			r.Post("/queue/pause", s.handlePause)
			r.Post("/queue/resume", s.handleResume)
			r.Post("/queue/retry", s.handleRetry)
			r.Post("/queue/remove", s.handleRemove)
			r.Post("/queue/retranslate", s.handleRetranslate)
			r.Get("/jobs/{id}", s.handleJob)
			r.Get("/videos/status", s.handleVideoStatus)
			r.Get("/results", s.handleResult)

			r.Get("/settings", s.handleSettings)
			r.Put("/settings", s.handleUpdateSettings)
			r.Get("/keys", s.handleKeys)
			r.Put("/keys", s.handleUpdateKeys)
			r.Post("/notifications/test", s.handleTestNotification)
		})
	})
	return r
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_serve_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check api.bind and restart the daemon"),
			)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service error markers to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
		)
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
