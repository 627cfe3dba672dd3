// Package server exposes the compression engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"pdfsqueeze/internal/compression"
	"pdfsqueeze/internal/config"
	"pdfsqueeze/internal/database"
	"pdfsqueeze/internal/fetch"
	"pdfsqueeze/internal/storage"
)

// StatsStore records finished compressions. A nil store disables statistics.
type StatsStore interface {
	Record(ctx context.Context, result *compression.Result) error
	Get(ctx context.Context) (*database.Statistics, error)
}

// Dependencies are the collaborators the HTTP boundary drives.
type Dependencies struct {
	Selector *compression.Selector
	Prober   compression.Prober
	Fetcher  *fetch.Fetcher
	Cleaner  storage.Cleaner
	Stats    StatsStore
}

// Server is the HTTP boundary.
type Server struct {
	cfg    *config.Config
	deps   Dependencies
	pool   *WorkerPool
	logger *slog.Logger
}

// New creates a server; the worker pool is sized from cfg.Server.Workers.
func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if deps.Selector == nil || deps.Prober == nil || deps.Fetcher == nil {
		return nil, errors.New("server: selector, prober and fetcher are required")
	}
	if deps.Cleaner == nil {
		deps.Cleaner = storage.NopCleaner{}
	}

	pool, err := NewWorkerPool(cfg.Server.Workers, cfg.Logger)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:    cfg,
		deps:   deps,
		pool:   pool,
		logger: cfg.Logger,
	}, nil
}

// Handler returns the router with all routes configured.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/stats", s.handleStats)
		r.Post("/compress", s.handleCompress)
		r.Post("/compress/remote", s.handleCompressRemote)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening",
			"addr", srv.Addr,
			"workers", s.pool.Cap(),
			"request_timeout", s.cfg.Server.RequestTimeout)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.pool.Release()
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server", "timeout", s.cfg.Server.GracefulShutdown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.GracefulShutdown)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.pool.Release()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the worker pool without serving.
func (s *Server) Close() {
	s.pool.Release()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("Request handled",
			"request_id", chimiddleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}
