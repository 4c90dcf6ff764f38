// Package cascade propagates a task's pause to its container, stage, build and pipeline summary.
//
// The writes are independent and not transactional. A failed write is logged and the cascade moves on
// to the next record. A crash between writes leaves the hierarchy skewed (for example a paused task in
// a RUNNING build) until the pipeline engine reconciles it.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"buildctl/internal/metrics"
	"buildctl/internal/models"
	"buildctl/internal/store"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog/log"
)

// ErrWriteFailed matches every failed cascade step
var ErrWriteFailed = errors.New("cascade write failed")

// Step names one write of the cascade
type Step string

const (
	StepTask      Step = "task"
	StepContainer Step = "container"
	StepStage     Step = "stage"
	StepBuild     Step = "build"
	StepSummary   Step = "summary"
)

// StepError is the failure of a single cascade step
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s status write failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) Is(target error) bool {
	return target == ErrWriteFailed
}

// Target identifies the task being paused and the records above it
type Target struct {
	BuildID     string
	PipelineID  string
	StageID     string
	ContainerID string
	TaskID      string
}

type Writer struct {
	tasks      store.TaskStore
	containers store.ContainerStore
	stages     store.StageStore
	builds     store.BuildStore
	summaries  store.SummaryStore
	metrics    *metrics.Metrics
}

func NewWriter(tasks store.TaskStore, containers store.ContainerStore, stages store.StageStore, builds store.BuildStore, summaries store.SummaryStore, m *metrics.Metrics) *Writer {
	return &Writer{
		tasks:      tasks,
		containers: containers,
		stages:     stages,
		builds:     builds,
		summaries:  summaries,
		metrics:    m,
	}
}

// ApplyPause writes PAUSE to the task, container, stage, build and pipeline summary, in that order. The
// build is only paused if it is still RUNNING, buildPaused reports whether that happened. err joins the
// failures of the individual steps and is nil when every write succeeded.
func (w *Writer) ApplyPause(ctx context.Context, t Target) (buildPaused bool, err error) {
	var errs []error
	record := func(step Step, err error) {
		if err == nil {
			return
		}
		log.Error().
			Err(err).
			Str("build_id", t.BuildID).
			Str("task_id", t.TaskID).
			Str("step", string(step)).
			Msg("Could not write pause status, continuing cascade")
		w.metrics.CascadeFailure(string(step))
		errs = append(errs, &StepError{Step: step, Err: err})
	}

	record(StepTask, w.tasks.UpdateTaskStatus(ctx, t.BuildID, t.TaskID, models.StatusPause))

	// start and end times stay as they are
	record(StepContainer, w.containers.UpdateContainerStatus(ctx, t.BuildID, t.StageID, t.ContainerID, models.StatusPause, null.Time{}, null.Time{}))

	record(StepStage, w.stages.UpdateStageStatus(ctx, t.BuildID, t.StageID, models.StatusPause))

	buildPaused, buildErr := w.builds.UpdateStatusIfCurrently(ctx, t.BuildID, models.StatusRunning, models.StatusPause)
	record(StepBuild, buildErr)
	if buildErr == nil && !buildPaused {
		log.Info().
			Str("build_id", t.BuildID).
			Msg("Build is no longer RUNNING, leaving its status unchanged")
	}

	record(StepSummary, w.summaries.FinishLatestRunningBuild(ctx, models.LatestRunningBuild{
		PipelineID: t.PipelineID,
		BuildID:    t.BuildID,
		Status:     models.StatusPause,
		BuildNum:   0,
		UserID:     "",
	}))

	return buildPaused, errors.Join(errs...)
}
