// Package server exposes the hub over HTTP: the WebSocket upgrade
// endpoint plus the health, stats and metrics read surfaces.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hirewire/notifyhub/internal/config"
	"github.com/hirewire/notifyhub/internal/hub"
	"github.com/hirewire/notifyhub/internal/metrics"
)

// Server binds the hub to its HTTP transport.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger
	hub    *hub.Hub

	listener     net.Listener
	httpServer   *http.Server
	shuttingDown int32 // atomic
}

// New wires the server. The hub is constructed by the caller and injected.
func New(cfg *config.Config, h *hub.Hub, logger zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger.With().Str("component", "server").Logger(),
		hub:    h,
	}
}

// Start begins listening and serving. Non-blocking; errors from the
// accept loop are logged.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Handler:        mux,
		ReadTimeout:    30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Server accept loop error")
		}
	}()

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("Server listening")
	return nil
}

// handleStats serves the stats aggregator snapshot for health checks and
// dashboards. Pure read; safe concurrently with everything else.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.hub.StatsSnapshot()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode stats")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","connections":%d}`, s.hub.ConnectionCount())
}

// Shutdown stops accepting connections, gives in-flight traffic a grace
// period, then closes every client through the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Initiating graceful shutdown")
	atomic.StoreInt32(&s.shuttingDown, 1)

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("HTTP shutdown did not complete cleanly")
		}
	}

	s.hub.Shutdown()
	s.logger.Info().Msg("Graceful shutdown completed")
	return nil
}
