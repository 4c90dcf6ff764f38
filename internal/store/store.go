// Package store defines the persistence collaborators the build task controller reads and writes.
package store

import (
	"context"

	"buildctl/internal/models"

	"github.com/guregu/null/v6"
)

// TaskStore defines operations on the runtime task records of a build.
type TaskStore interface {
	// GetTask retrieves a task of a build. Returns ErrNotFound if the task does not exist.
	GetTask(ctx context.Context, buildID, taskID string) (*models.BuildTask, error)
	// UpdateTaskStatus sets the status of a task.
	UpdateTaskStatus(ctx context.Context, buildID, taskID string, status models.BuildStatus) error
}

// ContainerStore defines operations on the containers (jobs) of a build.
type ContainerStore interface {
	// UpdateContainerStatus sets the status of a container. Invalid (null) times leave the persisted
	// start and end times untouched.
	UpdateContainerStatus(ctx context.Context, buildID, stageID, containerID string, status models.BuildStatus, startTime, endTime null.Time) error
}

// StageStore defines operations on the stages of a build.
type StageStore interface {
	// UpdateStageStatus sets the status of a stage.
	UpdateStageStatus(ctx context.Context, buildID, stageID string, status models.BuildStatus) error
}

// BuildStore defines operations on the build records.
type BuildStore interface {
	// UpdateBuildStatus sets the status of a build unconditionally.
	UpdateBuildStatus(ctx context.Context, buildID string, status models.BuildStatus) error
	// UpdateStatusIfCurrently sets the status of a build only if its persisted status is still
	// expected. Reports whether the write took effect.
	UpdateStatusIfCurrently(ctx context.Context, buildID string, expected, next models.BuildStatus) (bool, error)
	// CountSkewedBuilds counts builds that are RUNNING while one of their tasks is PAUSE.
	CountSkewedBuilds(ctx context.Context) (int, error)
}

// SummaryStore defines operations on the per pipeline build summary.
type SummaryStore interface {
	// FinishLatestRunningBuild releases the pipeline's running build slot and records the latest
	// build's status.
	FinishLatestRunningBuild(ctx context.Context, latest models.LatestRunningBuild) error
}

// PipelineStore defines read operations on pipelines.
type PipelineStore interface {
	// GetPipeline retrieves a pipeline. Returns ErrNotFound if the pipeline does not exist.
	GetPipeline(ctx context.Context, pipelineID string) (*models.PipelineInfo, error)
}

// ModelTaskStore defines read operations on the static task definitions of pipeline models.
type ModelTaskStore interface {
	// ListByPipelines lists the model tasks of the given pipelines in a project.
	ListByPipelines(ctx context.Context, projectID string, pipelineIDs []string) ([]models.ModelTask, error)
	// CountPipelinesByAtomCode counts the distinct pipelines using an atom. An empty projectCode
	// matches every project.
	CountPipelinesByAtomCode(ctx context.Context, atomCode, projectCode string) (int64, error)
	// ListPipelinesByAtomCode lists one page of the pipelines using an atom, ordered by pipeline name.
	ListPipelinesByAtomCode(ctx context.Context, atomCode, projectCode string, offset, limit int) ([]models.PipelineAtomRel, error)
	// ListAtomVersions lists the model tasks of an atom inside the given pipelines, used to collect
	// the versions each pipeline uses.
	ListAtomVersions(ctx context.Context, atomCode string, pipelineIDs []string) ([]models.ModelTask, error)
}
