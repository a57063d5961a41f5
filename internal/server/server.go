// Package server owns the HTTP listener and the shared middleware stack.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Webhook handlers must answer well inside the channel's delivery timeout,
// so the request timeout here is short. Pipeline work runs detached and is
// not bound by it.
const defaultRequestTimeout = 15 * time.Second

type Server struct {
	Router *chi.Mux

	addr   string
	logger *slog.Logger
	http   *http.Server
}

func New(port int, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(defaultRequestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "triage-gateway")
	})

	addr := fmt.Sprintf(":%d", port)
	return &Server{
		Router: r,
		addr:   addr,
		logger: logger,
		http:   &http.Server{Addr: addr, Handler: r},
	}
}

// Start blocks until the listener stops.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.String("addr", s.addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
