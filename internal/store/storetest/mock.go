// Package storetest provides test doubles for the store interfaces.
package storetest

import (
	"context"

	"buildctl/internal/models"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock implementing every store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetTask(ctx context.Context, buildID, taskID string) (*models.BuildTask, error) {
	args := m.Called(ctx, buildID, taskID)
	if task := args.Get(0); task != nil {
		return task.(*models.BuildTask), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) UpdateTaskStatus(ctx context.Context, buildID, taskID string, status models.BuildStatus) error {
	args := m.Called(ctx, buildID, taskID, status)
	return args.Error(0)
}

func (m *MockStore) UpdateContainerStatus(ctx context.Context, buildID, stageID, containerID string, status models.BuildStatus, startTime, endTime null.Time) error {
	args := m.Called(ctx, buildID, stageID, containerID, status, startTime, endTime)
	return args.Error(0)
}

func (m *MockStore) UpdateStageStatus(ctx context.Context, buildID, stageID string, status models.BuildStatus) error {
	args := m.Called(ctx, buildID, stageID, status)
	return args.Error(0)
}

func (m *MockStore) UpdateBuildStatus(ctx context.Context, buildID string, status models.BuildStatus) error {
	args := m.Called(ctx, buildID, status)
	return args.Error(0)
}

func (m *MockStore) UpdateStatusIfCurrently(ctx context.Context, buildID string, expected, next models.BuildStatus) (bool, error) {
	args := m.Called(ctx, buildID, expected, next)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) CountSkewedBuilds(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) FinishLatestRunningBuild(ctx context.Context, latest models.LatestRunningBuild) error {
	args := m.Called(ctx, latest)
	return args.Error(0)
}

func (m *MockStore) GetPipeline(ctx context.Context, pipelineID string) (*models.PipelineInfo, error) {
	args := m.Called(ctx, pipelineID)
	if p := args.Get(0); p != nil {
		return p.(*models.PipelineInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListByPipelines(ctx context.Context, projectID string, pipelineIDs []string) ([]models.ModelTask, error) {
	args := m.Called(ctx, projectID, pipelineIDs)
	if tasks := args.Get(0); tasks != nil {
		return tasks.([]models.ModelTask), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) CountPipelinesByAtomCode(ctx context.Context, atomCode, projectCode string) (int64, error) {
	args := m.Called(ctx, atomCode, projectCode)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ListPipelinesByAtomCode(ctx context.Context, atomCode, projectCode string, offset, limit int) ([]models.PipelineAtomRel, error) {
	args := m.Called(ctx, atomCode, projectCode, offset, limit)
	if rels := args.Get(0); rels != nil {
		return rels.([]models.PipelineAtomRel), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListAtomVersions(ctx context.Context, atomCode string, pipelineIDs []string) ([]models.ModelTask, error) {
	args := m.Called(ctx, atomCode, pipelineIDs)
	if tasks := args.Get(0); tasks != nil {
		return tasks.([]models.ModelTask), args.Error(1)
	}
	return nil, args.Error(1)
}
