// Package server owns the HTTP listener lifecycle for the admin surface
package server

import (
	"context"
	"net/http"
	"time"

	"transfer-router/internal/common/logging"
)

// Server wraps the admin HTTP server
type Server struct {
	srv    *http.Server
	logger logging.Logger
}

// New creates a server for the given handler and port
func New(handler http.Handler, port string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger.WithFields(logging.String("component", "server")),
	}
}

// Start begins serving in a background goroutine
func (s *Server) Start() {
	go func() {
		s.logger.Info("admin server listening", logging.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin server stopped", err)
		}
	}()
}

// Shutdown gracefully drains and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
