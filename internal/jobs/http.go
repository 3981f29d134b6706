package jobs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/lyralign/internal/health"
	"github.com/MrWong99/lyralign/internal/observe"
)

// Server exposes the job API:
//
//	POST /v1/alignments           submit a run, returns 202 + job
//	GET  /v1/alignments           list jobs, newest first
//	GET  /v1/alignments/{id}      poll one job
//	GET  /v1/alignments/{id}/lrc  fetch the artifact of a completed job
//	GET  /healthz, /readyz        probes
//	GET  /metrics                 Prometheus exposition
type Server struct {
	pool    *Pool
	store   *Store
	health  *health.Handler
	metrics *observe.Metrics
}

// NewServer creates the HTTP API over pool and store.
func NewServer(pool *Pool, store *Store, healthHandler *health.Handler, metrics *observe.Metrics) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{pool: pool, store: store, health: healthHandler, metrics: metrics}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	r.Route("/v1/alignments", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Get("/{id}/lrc", s.handleLRC)
	})

	if s.health != nil {
		r.Get("/healthz", s.health.Healthz)
		r.Get("/readyz", s.health.Readyz)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub Submission
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if sub.AudioPath == "" {
		writeError(w, http.StatusBadRequest, "audio_path is required")
		return
	}
	if strings.TrimSpace(sub.Lyrics) == "" {
		writeError(w, http.StatusBadRequest, "lyrics are required")
		return
	}

	job, err := s.pool.Enqueue(r.Context(), sub)
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "job queue is full, retry later")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "no such job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleLRC(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "no such job")
		return
	}
	switch job.Status {
	case StatusCompleted:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(job.Result.LRC))
	case StatusFailed:
		writeError(w, http.StatusConflict, "job failed: "+job.Error)
	default:
		writeError(w, http.StatusConflict, "job is not finished yet")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
