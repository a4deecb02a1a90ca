// Package server exposes health, metrics and queue statistics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"modq/internal/modq"
)

const shutdownTimeout = 5 * time.Second

// Checkpoints reports the most recent flush.
type Checkpoints interface {
	Status() modq.CheckpointStatus
}

// Deps are the components the endpoints read from.
type Deps struct {
	Queue       modq.SubmissionQueue
	Registry    modq.IdentityRegistry
	Ledger      modq.GrantLedger
	Checkpoints Checkpoints
	Clock       modq.Clock
	Logger      modq.Logger

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Middlewares wrap every route, in order.
	Middlewares []func(http.Handler) http.Handler
}

// Server is the operational HTTP endpoint. It is read-only: nothing here
// mutates the queue or the ledgers.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     modq.Logger
}

func New(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = modq.NewNopLogger()
	}
	if deps.Clock == nil {
		deps.Clock = modq.RealClock{}
	}
	s := &Server{deps: deps, logger: deps.Logger}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range s.deps.Middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

type healthResponse struct {
	Status    string     `json:"status"`
	LastFlush *time.Time `json:"last_flush,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	code := http.StatusOK

	if s.deps.Checkpoints != nil {
		st := s.deps.Checkpoints.Status()
		if !st.LastFlush.IsZero() {
			t := st.LastFlush.UTC()
			resp.LastFlush = &t
		}
		if st.Err != nil {
			resp.Status = "degraded"
			resp.Error = st.Err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	s.writeJSON(w, code, resp)
}

// Stats is the /api/v1/stats payload.
type Stats struct {
	Users        int `json:"users"`
	GrantHolders int `json:"grant_holders"`
	Pending      int `json:"pending"`
	Stale        int `json:"stale"`
	Approved     int `json:"approved"`
	Rejected     int `json:"rejected"`
	Processed    int `json:"processed"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	counts := s.deps.Queue.Counts()
	now := s.deps.Clock.Now()

	stale := 0
	for _, sub := range s.deps.Queue.ListPending(modq.All()) {
		if sub.IsStale(now) {
			stale++
		}
	}

	s.writeJSON(w, http.StatusOK, Stats{
		Users:        s.deps.Registry.Count(),
		GrantHolders: s.deps.Ledger.Count(),
		Pending:      counts.Pending,
		Stale:        stale,
		Approved:     counts.Approved,
		Rejected:     counts.Rejected,
		Processed:    counts.Processed(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", "error", err)
	}
}
