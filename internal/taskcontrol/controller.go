// Package taskcontrol decides, for a task of a running build, whether it is retried after a failure
// and whether it pauses before it executes.
package taskcontrol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"buildctl/internal/buildlog"
	"buildctl/internal/cascade"
	"buildctl/internal/counter"
	"buildctl/internal/metrics"
	"buildctl/internal/models"
	"buildctl/internal/notify"
	"buildctl/internal/policy"
	"buildctl/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultRetryDelay is the delay announced in the build log before a retry
const DefaultRetryDelay = 5 * time.Second

// PauseWriter applies a pause to the records above a task
type PauseWriter interface {
	ApplyPause(ctx context.Context, t cascade.Target) (bool, error)
}

// Notifier tells users about a paused task
type Notifier interface {
	Notify(ctx context.Context, notice notify.PauseNotice) bool
}

// Deps are the collaborators of a Controller. BuildLog and Metrics are optional.
type Deps struct {
	Tasks      store.TaskStore
	Pipelines  store.PipelineStore
	ModelTasks store.ModelTaskStore
	Counter    counter.Store
	Cascade    PauseWriter
	Notifier   Notifier
	BuildLog   buildlog.Publisher
	Metrics    *metrics.Metrics

	// KeyPrefix namespaces the retry counters, counter.DefaultKeyPrefix when empty
	KeyPrefix string
	// RetryDelay is announced to users when a retry is scheduled, DefaultRetryDelay when zero
	RetryDelay time.Duration
}

type Controller struct {
	tasks      store.TaskStore
	pipelines  store.PipelineStore
	modelTasks store.ModelTaskStore
	counter    counter.Store
	cascade    PauseWriter
	notifier   Notifier
	buildLog   buildlog.Publisher
	metrics    *metrics.Metrics
	keyPrefix  string
	retryDelay time.Duration
}

func New(deps Deps) *Controller {
	c := &Controller{
		tasks:      deps.Tasks,
		pipelines:  deps.Pipelines,
		modelTasks: deps.ModelTasks,
		counter:    deps.Counter,
		cascade:    deps.Cascade,
		notifier:   deps.Notifier,
		buildLog:   deps.BuildLog,
		metrics:    deps.Metrics,
		keyPrefix:  deps.KeyPrefix,
		retryDelay: deps.RetryDelay,
	}
	if c.buildLog == nil {
		c.buildLog = buildlog.Discard{}
	}
	if c.keyPrefix == "" {
		c.keyPrefix = counter.DefaultKeyPrefix
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}
	return c
}

// ShouldRetry decides whether a failed task is retried. An allowed retry is recorded in the shared
// counter with a single compare-and-increment, so concurrent callers never grant more retries than
// the task allows. An unreadable counter counts as zero attempts.
func (c *Controller) ShouldRetry(ctx context.Context, buildID, taskID string) (bool, error) {
	task, err := c.getTask(ctx, buildID, taskID)
	if err != nil {
		return false, err
	}

	controls := policy.Resolve(task.AdditionalOptions)
	if !controls.RetryEnabled {
		c.metrics.ObserveRetry(false)
		return false, nil
	}

	key := c.key(buildID, taskID)
	attempts, _, err := c.counter.Get(ctx, key)
	if err != nil {
		log.Warn().
			Err(err).
			Bool("counter_unavailable", true).
			Str("build_id", buildID).
			Str("task_id", taskID).
			Msg("Could not read retry count, assuming no attempts")
		c.metrics.CounterError("get")
		attempts = 0
	}

	if !policy.RetryWhenFailure(controls, attempts) {
		c.metrics.ObserveRetry(false)
		return false, nil
	}

	attempt, incremented, err := c.counter.IncrementBelow(ctx, key, controls.MaxRetries)
	if err != nil {
		c.metrics.CounterError("increment")
		return false, fmt.Errorf("%w for task %s of build %s: %w", ErrCounterWrite, taskID, buildID, err)
	}
	if !incremented {
		// another caller took the last attempt
		log.Info().
			Str("build_id", buildID).
			Str("task_id", taskID).
			Int64("retry_count", attempt).
			Msg("Retry limit reached concurrently")
		c.metrics.ObserveRetry(false)
		return false, nil
	}

	log.Info().
		Str("build_id", buildID).
		Str("stage_id", task.StageID).
		Str("container_id", task.ContainerID).
		Str("task_id", taskID).
		Int64("retry_count", attempt).
		Msg("Task failed and will be retried")
	c.publish(ctx, task, fmt.Sprintf("Task %s failed, retry attempt %d starts in %s", task.TaskName, attempt, c.retryDelay))

	c.metrics.ObserveRetry(true)
	return true, nil
}

// ShouldPause decides whether a task pauses before it executes. On a pause the task, its container,
// stage, build and the pipeline summary are marked paused and the subscribers are notified. Failed
// status writes and notifications do not change the decision. seqID is only logged, a random one is
// used when it is empty.
func (c *Controller) ShouldPause(ctx context.Context, buildID, taskID, seqID string) (bool, error) {
	task, err := c.getTask(ctx, buildID, taskID)
	if err != nil {
		return false, err
	}
	if seqID == "" {
		seqID = uuid.NewString()
	}

	controls := policy.Resolve(task.AdditionalOptions)
	if !policy.PauseBeforeExec(controls) {
		c.metrics.ObservePause(false)
		return false, nil
	}

	log.Info().
		Str("build_id", buildID).
		Str("pipeline_id", task.PipelineID).
		Str("stage_id", task.StageID).
		Str("container_id", task.ContainerID).
		Str("task_id", taskID).
		Str("seq_id", seqID).
		Msg("Pausing task before execution")
	c.publish(ctx, task, fmt.Sprintf("Task %s is paused, waiting for manual continue", task.TaskName))

	buildPaused, err := c.cascade.ApplyPause(ctx, cascade.Target{
		BuildID:     task.BuildID,
		PipelineID:  task.PipelineID,
		StageID:     task.StageID,
		ContainerID: task.ContainerID,
		TaskID:      task.TaskID,
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("build_id", buildID).
			Str("task_id", taskID).
			Bool("build_paused", buildPaused).
			Msg("Pause cascade incomplete, records are left for reconciliation")
	}

	var pipelineName, lastModifyUser string
	if pipeline, err := c.pipelines.GetPipeline(ctx, task.PipelineID); err != nil {
		log.Warn().
			Err(err).
			Str("pipeline_id", task.PipelineID).
			Msg("Could not get pipeline of paused task")
	} else {
		pipelineName = pipeline.PipelineName
		lastModifyUser = pipeline.LastModifyUser.String
	}

	c.notifier.Notify(ctx, notify.PauseNotice{
		ProjectName:  task.ProjectID,
		PipelineName: pipelineName,
		BuildID:      buildID,
		TaskID:       taskID,
		TaskName:     task.TaskName,
		Recipients:   policy.ResolveRecipients(controls.PauseSubscribers, lastModifyUser),
	})

	c.metrics.ObservePause(true)
	return true, nil
}

// ClearRetryState forgets the retry attempts of a task. Clearing a task without attempts is a no-op.
func (c *Controller) ClearRetryState(ctx context.Context, buildID, taskID string) error {
	if err := validateIDs(buildID, taskID); err != nil {
		return err
	}
	if err := c.counter.Delete(ctx, c.key(buildID, taskID)); err != nil {
		c.metrics.CounterError("delete")
		return fmt.Errorf("could not clear retry state of task %s of build %s: %w", taskID, buildID, err)
	}
	log.Debug().Str("build_id", buildID).Str("task_id", taskID).Msg("Cleared retry state")
	return nil
}

// RetryState returns the retry attempts recorded for a task
func (c *Controller) RetryState(ctx context.Context, buildID, taskID string) (int64, error) {
	if err := validateIDs(buildID, taskID); err != nil {
		return 0, err
	}
	attempts, _, err := c.counter.Get(ctx, c.key(buildID, taskID))
	if err != nil {
		c.metrics.CounterError("get")
		return 0, err
	}
	return attempts, nil
}

func (c *Controller) key(buildID, taskID string) string {
	return counter.KeyWithPrefix(c.keyPrefix, buildID, taskID)
}

func (c *Controller) getTask(ctx context.Context, buildID, taskID string) (*models.BuildTask, error) {
	if err := validateIDs(buildID, taskID); err != nil {
		return nil, err
	}

	task, err := c.tasks.GetTask(ctx, buildID, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: task %s of build %s", ErrTaskNotFound, taskID, buildID)
		}
		return nil, fmt.Errorf("could not get task %s of build %s: %w", taskID, buildID, err)
	}
	return task, nil
}

func (c *Controller) publish(ctx context.Context, task *models.BuildTask, message string) {
	err := c.buildLog.Publish(ctx, buildlog.Line{
		BuildID:      task.BuildID,
		Message:      message,
		Tag:          task.TaskID,
		JobID:        task.ContainerID,
		ExecuteCount: 1,
		Level:        buildlog.LevelWarn,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("build_id", task.BuildID).
			Str("task_id", task.TaskID).
			Msg("Could not publish build log line")
	}
}

func validateIDs(buildID, taskID string) error {
	if buildID == "" {
		return fmt.Errorf("%w: build id is required", ErrInvalidArgument)
	}
	if taskID == "" {
		return fmt.Errorf("%w: task id is required", ErrInvalidArgument)
	}
	return nil
}
