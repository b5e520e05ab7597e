package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Config holds the address the recorded metrics are served on.
type Config struct {
	Host string
	Port int
}

// Server exposes the metrics of a Recorder on /metrics.
type Server struct {
	addr    string
	handler http.Handler

	mu       sync.RWMutex
	listened net.Addr
}

// NewServer returns a server exposing the runs recorded by r.
func NewServer(cfg Config, r *Recorder) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{}))

	return &Server{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		handler: mux,
	}
}

// Serve serves the metrics until ctx is done, then shuts the server down gracefully.
// It returns nil once stopped by ctx.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %v", s.addr, err)
	}

	s.mu.Lock()
	s.listened = listener.Addr()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}

// Addr returns the address the server is listening on, or an empty string before Serve binds it.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listened == nil {
		return ""
	}
	return s.listened.String()
}
