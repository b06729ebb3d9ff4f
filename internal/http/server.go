package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Server owns the http.Server lifecycle: start, then drain on shutdown.
type Server struct {
	httpServer *http.Server
}

func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
	}
}

// Start listens and serves until the server is shut down. A clean shutdown
// is not reported as an error.
func (s *Server) Start() error {
	log.Printf("Listening on %s", s.httpServer.Addr)

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}

// Shutdown drains in-flight requests, bounded by the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Draining connections...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
