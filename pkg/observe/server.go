// Package observe is the read-only HTTP surface over the session store: a
// polling UI, a dashboard or curl can inspect timelines and connection
// state without holding a reference to the process internals.
package observe

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"hubsync/pkg/config"
	"hubsync/pkg/logger"
	"hubsync/pkg/session"
	"hubsync/pkg/telemetry"
)

// Server serves the observe API on the configured address.
type Server struct {
	store   *session.Store
	version string
	srv     *http.Server
}

func NewServer(cfg *config.Config, store *session.Store, version string) *Server {
	s := &Server{store: store, version: version}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.healthz).Methods(http.MethodGet)
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/groups", s.listGroups).Methods(http.MethodGet)
	v1.HandleFunc("/groups/{id}/messages", s.groupMessages).Methods(http.MethodGet)
	v1.HandleFunc("/groups/{id}/status", s.groupStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))

	pool := newLimiterPool(cfg.Observe.RateLimit.RPS, cfg.Observe.RateLimit.Burst)
	handler := telemetry.Middleware(pool.middleware(r))

	s.srv = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving in a goroutine and returns a channel carrying the
// terminal server error, if any.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("observe_listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	return errCh
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the wired handler for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }
