package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const defaultWriteTimeout = 10 * time.Second

// ShutdownTimeout bounds how long in-flight requests, including a discovery
// walk, get to finish after a stop signal.
var ShutdownTimeout = 15 * time.Second

// Server wraps the http.Server with sensible defaults.
type Server struct {
	inner *http.Server
}

// New constructs a server listening on the provided port. Discovery responses
// can take several seconds to assemble, so the write timeout is configurable;
// a non-positive value keeps the default.
func New(port int, handler http.Handler, writeTimeout time.Duration) *Server {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

// Addr reports the listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
