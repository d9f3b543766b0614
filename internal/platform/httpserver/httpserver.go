// Package httpserver wraps http.Server with sane production timeouts.
package httpserver

import (
	"context"
	"net/http"
	"time"
)

// New builds an http.Server for the given address and handler.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Server is a thin lifecycle wrapper around http.Server.
type Server struct {
	srv *http.Server
}

// ListenAndServe starts serving and blocks until shutdown or failure.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
