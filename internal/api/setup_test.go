package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"buildctl/internal/api"
	"buildctl/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
)

type MockController struct {
	mock.Mock
}

func (m *MockController) ShouldRetry(ctx context.Context, buildID, taskID string) (bool, error) {
	args := m.Called(ctx, buildID, taskID)
	return args.Bool(0), args.Error(1)
}

func (m *MockController) ShouldPause(ctx context.Context, buildID, taskID, seqID string) (bool, error) {
	args := m.Called(ctx, buildID, taskID, seqID)
	return args.Bool(0), args.Error(1)
}

func (m *MockController) ClearRetryState(ctx context.Context, buildID, taskID string) error {
	args := m.Called(ctx, buildID, taskID)
	return args.Error(0)
}

func (m *MockController) RetryState(ctx context.Context, buildID, taskID string) (int64, error) {
	args := m.Called(ctx, buildID, taskID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockController) ListModelTasks(ctx context.Context, projectID string, pipelineIDs []string) (map[string][]models.ModelTask, error) {
	args := m.Called(ctx, projectID, pipelineIDs)
	if tasks := args.Get(0); tasks != nil {
		return tasks.(map[string][]models.ModelTask), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockController) ListPipelinesByAtomCode(ctx context.Context, atomCode, projectCode string, page, pageSize int) (*models.Page[models.PipelineAtomRel], error) {
	args := m.Called(ctx, atomCode, projectCode, page, pageSize)
	if p := args.Get(0); p != nil {
		return p.(*models.Page[models.PipelineAtomRel]), args.Error(1)
	}
	return nil, args.Error(1)
}

// serve sends a request through a server backed by controller
func serve(t *testing.T, controller api.Controller, reg *prometheus.Registry, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	api.New(controller, reg).ServeHTTP(rr, req)
	return rr
}
