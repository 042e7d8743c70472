// Package server exposes the decision workflow over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/verdictlabs/verdict/internal/service"
	"github.com/verdictlabs/verdict/internal/workflow"
)

const maxUploadBytes = 10 << 20 // 10 MiB

// Server routes HTTP requests to the workflow engine and policy store.
type Server struct {
	engine  *workflow.Engine
	storage service.Storage
	addr    string
}

// New creates an HTTP server for the given workflow engine.
func New(engine *workflow.Engine, storage service.Storage, addr string) *Server {
	return &Server{engine: engine, storage: storage, addr: addr}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/applications", func(api chi.Router) {
		api.Post("/", s.handleSubmit)
		api.Get("/", s.handleList)
		api.Get("/stats", s.handleStats)
		api.Post("/batch", s.handleBatch)
		api.Get("/{decision_id}", s.handleGet)
		api.Post("/{decision_id}/review", s.handleReview)
		api.Put("/{decision_id}/explanation", s.handleEditExplanation)
	})

	r.Route("/policies", func(api chi.Router) {
		api.Get("/", s.handleListPolicies)
		api.Post("/", s.handleAddPolicy)
		api.Post("/upload", s.handleUploadPolicies)
		api.Delete("/{domain}/{policy_id}", s.handleDeletePolicy)
	})

	return r
}

// ListenAndServe runs the server until ctx is canceled, then drains in-flight
// requests and background classification work.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	s.engine.Wait()

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger emits one structured line per request, matching the rest of
// the application's slog output.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
