package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"buildctl/internal/models"
	"buildctl/internal/taskcontrol"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Controller is what the HTTP API exposes to the pipeline engine
type Controller interface {
	ShouldRetry(ctx context.Context, buildID, taskID string) (bool, error)
	ShouldPause(ctx context.Context, buildID, taskID, seqID string) (bool, error)
	ClearRetryState(ctx context.Context, buildID, taskID string) error
	RetryState(ctx context.Context, buildID, taskID string) (int64, error)
	ListModelTasks(ctx context.Context, projectID string, pipelineIDs []string) (map[string][]models.ModelTask, error)
	ListPipelinesByAtomCode(ctx context.Context, atomCode, projectCode string, page, pageSize int) (*models.Page[models.PipelineAtomRel], error)
}

type Server struct {
	router *chi.Mux
}

// New creates a new API server instance. Metrics are served from gatherer.
func New(controller Controller, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		router: chi.NewRouter(),
	}

	// Set up middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		serveJson(w, map[string]string{"status": "ok"})
	})
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		NewTaskRouter(controller, r)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func readJson(w http.ResponseWriter, r *http.Request, payload any) error {
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Error().Err(err).Msg("Could not close request body")
		}
	}()

	err := json.NewDecoder(r.Body).Decode(payload)
	if err != nil {
		http.Error(w, "could not parse request body to payload", http.StatusBadRequest)
	}
	return err
}

func serveJson(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		http.Error(w, "Failed to encode payload", http.StatusInternalServerError)
		log.Error().Err(err).Msg("JSON encoding issue")
	}
}

// serveError writes err with the status code matching its kind
func serveError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, taskcontrol.ErrTaskNotFound):
		status = http.StatusNotFound
	case errors.Is(err, taskcontrol.ErrInvalidArgument):
		status = http.StatusBadRequest
	default:
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Status: status, Message: err.Error()}); err != nil {
		log.Error().Err(err).Msg("JSON encoding issue")
	}
}
