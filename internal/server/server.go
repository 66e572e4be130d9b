// Package server exposes the merged fleet state over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"komari-bridge/internal/config"
)

// Server is the bridge's downstream HTTP server.
type Server struct {
	cfg      config.ServerConfig
	handlers *Handlers
	hub      *Hub
	logger   zerolog.Logger
	httpSrv  *http.Server
}

// New creates the HTTP server around the given handler set and hub.
func New(cfg config.ServerConfig, handlers *Handlers, hub *Hub, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		handlers: handlers,
		hub:      hub,
		logger:   logger.With().Str("component", "server").Logger(),
	}

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.httpSrv = &http.Server{
		Handler:      c.Handler(s.Router()),
		Addr:         cfg.Listen,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router builds the API route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", s.handlers.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/servers", s.handlers.Servers).Methods("GET")
	api.HandleFunc("/server-group", s.handlers.ServerGroups).Methods("GET")
	api.HandleFunc("/monitor/{id:[0-9]+}", s.handlers.Monitor).Methods("GET")
	api.HandleFunc("/service", s.handlers.Service).Methods("GET")
	api.HandleFunc("/setting", s.handlers.Setting).Methods("GET")
	api.HandleFunc("/ws/server", s.hub.ServeWS).Methods("GET")

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Listen).Msg("HTTP server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info().Msg("shutting down HTTP server")
	return s.httpSrv.Shutdown(shutdownCtx)
}
