// Package server exposes the refresh service over HTTP.
//
// Routes:
//
//	POST /v1/artifacts                 register an alias and refresh it
//	GET  /v1/artifacts/{id}            the artifact with its current metrics
//	POST /v1/artifacts/{id}/refresh    start a refresh
//	GET  /v1/artifacts/{id}/status     poll a refresh
//	GET  /metrics                      Prometheus metrics
//	GET  /healthz                      liveness
//
// The status route answers 210 while jobs are outstanding and 200 once the
// artifact is up to date, so clients can poll on the status code alone.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/artifact"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/jobqueue"
	"github.com/matzehuels/impactrefresh/pkg/status"
)

// StatusUpdating is the response code of a status poll while jobs are
// still outstanding.
const StatusUpdating = 210

// Refresher starts refreshes.
type Refresher interface {
	Register(ctx context.Context, a alias.Alias) (*artifact.Artifact, *jobqueue.Run, error)
	Refresh(ctx context.Context, id string) (*jobqueue.Run, error)
}

// Options configures a Server.
type Options struct {
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *log.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	store   artifact.Store
	tracker status.Tracker
	svc     Refresher
	opts    Options
}

// New returns a server reading artifacts from store and refresh progress
// from tracker.
func New(store artifact.Store, tracker status.Tracker, svc Refresher, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Server{store: store, tracker: tracker, svc: svc, opts: opts}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/v1/artifacts", func(r chi.Router) {
		r.Post("/", s.register)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.get)
			r.Post("/refresh", s.refresh)
			r.Get("/status", s.status)
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully
// within grace.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.opts.Logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.opts.Logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start).Round(time.Microsecond))
	})
}

// registerRequest accepts either {"alias":"ns:id"} or the two parts.
type registerRequest struct {
	Alias      string `json:"alias"`
	Namespace  string `json:"namespace"`
	Identifier string `json:"identifier"`
}

type runResponse struct {
	ID     string `json:"id"`
	RunID  string `json:"run_id,omitempty"`
	Jobs   int    `json:"jobs"`
	Stages int    `json:"stages"`
}

func newRunResponse(id string, run *jobqueue.Run) runResponse {
	resp := runResponse{ID: id}
	if run != nil {
		resp.RunID = run.ID
		resp.Jobs = run.Jobs()
		resp.Stages = len(run.Stages)
	}
	return resp
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	a := alias.New(req.Namespace, req.Identifier)
	if req.Alias != "" {
		var err error
		if a, err = alias.Parse(req.Alias); err != nil {
			s.writeError(w, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "parse alias"))
			return
		}
	}

	art, run, err := s.svc.Register(r.Context(), a)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newRunResponse(art.ID, run))
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.svc.Refresh(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newRunResponse(id, run))
}

type statusResponse struct {
	Updating    bool `json:"updating"`
	Outstanding int  `json:"outstanding,omitempty"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.Get(r.Context(), id); err != nil {
		s.writeError(w, storeError(err, id))
		return
	}
	n, err := s.tracker.Outstanding(r.Context(), id)
	if err != nil {
		s.writeError(w, apperr.Wrap(apperr.ErrCodeInternal, err, "status of %s", id))
		return
	}
	if n > 0 {
		writeJSON(w, StatusUpdating, statusResponse{Updating: true, Outstanding: n})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{})
}

// artifactView is an artifact with its metric history reduced to the
// latest reading per series.
type artifactView struct {
	ID        string                          `json:"id"`
	CreatedAt time.Time                       `json:"created_at"`
	UpdatedAt time.Time                       `json:"updated_at"`
	Aliases   []alias.Alias                   `json:"aliases"`
	Biblio    map[string]artifact.BiblioField `json:"biblio"`
	Metrics   []artifact.Observation          `json:"metrics"`
	Updating  bool                            `json:"updating"`
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, storeError(err, id))
		return
	}
	updating, err := s.tracker.IsUpdating(r.Context(), id)
	if err != nil {
		s.opts.Logger.Warn("status lookup failed", "artifact", id, "err", err)
	}
	writeJSON(w, http.StatusOK, artifactView{
		ID:        a.ID,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
		Aliases:   a.Aliases,
		Biblio:    a.Biblio,
		Metrics:   a.Current(),
		Updating:  updating,
	})
}

func storeError(err error, id string) error {
	if errors.Is(err, artifact.ErrNotFound) {
		return apperr.Wrap(apperr.ErrCodeNotFound, err, "artifact %s", id)
	}
	return apperr.Wrap(apperr.ErrCodeInternal, err, "load artifact %s", id)
}

type errorResponse struct {
	Code  apperr.Code `json:"code"`
	Error string      `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperr.GetCode(err)
	httpStatus := http.StatusInternalServerError
	switch code {
	case apperr.ErrCodeInvalidInput:
		httpStatus = http.StatusBadRequest
	case apperr.ErrCodeNotFound:
		httpStatus = http.StatusNotFound
	case apperr.ErrCodeUnsupported:
		httpStatus = http.StatusUnprocessableEntity
	default:
		s.opts.Logger.Error("request failed", "err", err)
	}
	if code == "" {
		code = apperr.ErrCodeInternal
	}
	writeJSON(w, httpStatus, errorResponse{Code: code, Error: apperr.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
