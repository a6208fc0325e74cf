// Package server exposes planning and refactoring over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alantheprice/refactord/pkg/planner"
	"github.com/alantheprice/refactord/pkg/refactor"
	"github.com/alantheprice/refactord/pkg/utils"
	"github.com/gorilla/websocket"
)

// Options wires a Server.
type Options struct {
	Planner      *planner.Planner
	Orchestrator *refactor.Orchestrator
	Metrics      *Metrics
	Logger       *utils.Logger
	// RequestTimeout bounds a whole request. Zero means no bound.
	RequestTimeout time.Duration
}

// Server serves the HTTP API.
type Server struct {
	planner        *planner.Planner
	orchestrator   *refactor.Orchestrator
	metrics        *Metrics
	logger         *utils.Logger
	requestTimeout time.Duration
	upgrader       websocket.Upgrader
}

// New creates a server. Missing collaborators get defaults.
func New(opts Options) *Server {
	s := &Server{
		planner:        opts.Planner,
		orchestrator:   opts.Orchestrator,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		requestTimeout: opts.RequestTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if s.logger == nil {
		s.logger = utils.Discard()
	}
	if s.planner == nil {
		s.planner = planner.New(planner.Options{Logger: s.logger})
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.orchestrator == nil {
		s.orchestrator = refactor.New(refactor.Options{Logger: s.logger, OnFileOutcome: s.metrics.ObserveFile})
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /plan", s.handlePlan)
	mux.HandleFunc("POST /refactor", s.handleRefactor)
	mux.HandleFunc("GET /refactor/stream", s.handleRefactorStream)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.handler())
	return withCORS(withRecover(s.logger, mux))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Logf("refactord listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.requestTimeout > 0 {
		return context.WithTimeout(r.Context(), s.requestTimeout)
	}
	return context.WithCancel(r.Context())
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Error: utils.CodeOf(err), Message: err.Error()}
	var se *utils.StructuredError
	if errors.As(err, &se) {
		body.Message = se.Message
		if se.RootCause != nil {
			body.Message += ": " + se.RootCause.Error()
		}
	}
	writeJSON(w, status, body)
}

// statusFor maps an error category to an HTTP status.
func statusFor(err error) int {
	switch {
	case utils.IsCategory(err, utils.CategoryValidation):
		return http.StatusBadRequest
	case utils.IsCategory(err, utils.CategoryTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
