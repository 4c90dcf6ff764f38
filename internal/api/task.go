package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type TaskRouter struct {
	controller Controller
}

func NewTaskRouter(controller Controller, router chi.Router) *TaskRouter {
	t := &TaskRouter{controller: controller}

	router.Route("/builds/{buildId}/tasks/{taskId}", func(r chi.Router) {
		r.Post("/retry", t.Retry)
		r.Get("/retry", t.GetRetryState)
		r.Delete("/retry", t.ClearRetryState)
		r.Post("/pause", t.Pause)
	})
	router.Get("/projects/{projectId}/model-tasks", t.ListModelTasks)
	router.Get("/atoms/{atomCode}/pipelines", t.ListPipelinesByAtomCode)

	return t
}

func (t *TaskRouter) Retry(w http.ResponseWriter, r *http.Request) {
	retry, err := t.controller.ShouldRetry(r.Context(), chi.URLParam(r, "buildId"), chi.URLParam(r, "taskId"))
	if err != nil {
		serveError(w, r, err)
		return
	}
	serveJson(w, RetryResponse{Retry: retry})
}

func (t *TaskRouter) GetRetryState(w http.ResponseWriter, r *http.Request) {
	buildID, taskID := chi.URLParam(r, "buildId"), chi.URLParam(r, "taskId")
	attempts, err := t.controller.RetryState(r.Context(), buildID, taskID)
	if err != nil {
		serveError(w, r, err)
		return
	}
	serveJson(w, RetryStateResponse{BuildID: buildID, TaskID: taskID, Attempts: attempts})
}

func (t *TaskRouter) ClearRetryState(w http.ResponseWriter, r *http.Request) {
	if err := t.controller.ClearRetryState(r.Context(), chi.URLParam(r, "buildId"), chi.URLParam(r, "taskId")); err != nil {
		serveError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Pause takes the sequence id from the seqId query parameter or from a JSON body
func (t *TaskRouter) Pause(w http.ResponseWriter, r *http.Request) {
	payload := PauseRequest{SeqID: r.URL.Query().Get("seqId")}
	if payload.SeqID == "" && r.ContentLength > 0 {
		if err := readJson(w, r, &payload); err != nil {
			return
		}
	}

	pause, err := t.controller.ShouldPause(r.Context(), chi.URLParam(r, "buildId"), chi.URLParam(r, "taskId"), strings.TrimSpace(payload.SeqID))
	if err != nil {
		serveError(w, r, err)
		return
	}
	serveJson(w, PauseResponse{Pause: pause})
}

func (t *TaskRouter) ListModelTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := t.controller.ListModelTasks(r.Context(), chi.URLParam(r, "projectId"), pipelineIDs(r.URL.Query()))
	if err != nil {
		serveError(w, r, err)
		return
	}
	serveJson(w, tasks)
}

func (t *TaskRouter) ListPipelinesByAtomCode(w http.ResponseWriter, r *http.Request) {
	q, err := parseListPipelinesQuery(r.URL.Query())
	if err != nil {
		serveError(w, r, err)
		return
	}

	page, err := t.controller.ListPipelinesByAtomCode(r.Context(), chi.URLParam(r, "atomCode"), q.ProjectCode, q.Page, q.PageSize)
	if err != nil {
		serveError(w, r, err)
		return
	}
	serveJson(w, page)
}
