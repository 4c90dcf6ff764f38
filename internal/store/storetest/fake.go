package storetest

import (
	"context"
	"fmt"
	"sync"

	"buildctl/internal/models"
	"buildctl/internal/store"

	"github.com/guregu/null/v6"
)

type containerKey struct{ buildID, stageID, containerID string }
type stageKey struct{ buildID, stageID string }
type taskKey struct{ buildID, taskID string }

// FakeStore keeps the build hierarchy in memory so tests can read statuses back. It implements the
// task, container, stage, build, summary and pipeline stores.
type FakeStore struct {
	mu         sync.Mutex
	tasks      map[taskKey]models.BuildTask
	containers map[containerKey]models.BuildContainer
	stages     map[stageKey]models.BuildStage
	builds     map[string]models.BuildStatus
	summaries  map[string]models.LatestRunningBuild
	pipelines  map[string]models.PipelineInfo
	writes     int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		tasks:      make(map[taskKey]models.BuildTask),
		containers: make(map[containerKey]models.BuildContainer),
		stages:     make(map[stageKey]models.BuildStage),
		builds:     make(map[string]models.BuildStatus),
		summaries:  make(map[string]models.LatestRunningBuild),
		pipelines:  make(map[string]models.PipelineInfo),
	}
}

// AddTask seeds a task together with its container, stage and build. Existing records are kept.
func (f *FakeStore) AddTask(task models.BuildTask, buildStatus models.BuildStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tasks[taskKey{task.BuildID, task.TaskID}] = task
	ck := containerKey{task.BuildID, task.StageID, task.ContainerID}
	if _, ok := f.containers[ck]; !ok {
		f.containers[ck] = models.BuildContainer{BuildID: task.BuildID, StageID: task.StageID, ContainerID: task.ContainerID, Status: models.StatusRunning}
	}
	sk := stageKey{task.BuildID, task.StageID}
	if _, ok := f.stages[sk]; !ok {
		f.stages[sk] = models.BuildStage{BuildID: task.BuildID, StageID: task.StageID, Status: models.StatusRunning}
	}
	if _, ok := f.builds[task.BuildID]; !ok {
		f.builds[task.BuildID] = buildStatus
	}
}

func (f *FakeStore) AddPipeline(p models.PipelineInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pipelines[p.PipelineID] = p
}

func (f *FakeStore) SetContainerTimes(buildID, stageID, containerID string, start, end null.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ck := containerKey{buildID, stageID, containerID}
	c := f.containers[ck]
	c.StartTime, c.EndTime = start, end
	f.containers[ck] = c
}

func (f *FakeStore) TaskStatus(buildID, taskID string) models.BuildStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[taskKey{buildID, taskID}].Status
}

func (f *FakeStore) Container(buildID, stageID, containerID string) models.BuildContainer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containers[containerKey{buildID, stageID, containerID}]
}

func (f *FakeStore) StageStatus(buildID, stageID string) models.BuildStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stages[stageKey{buildID, stageID}].Status
}

func (f *FakeStore) BuildStatus(buildID string) models.BuildStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds[buildID]
}

// Summary returns the last summary written for a pipeline
func (f *FakeStore) Summary(pipelineID string) (models.LatestRunningBuild, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.summaries[pipelineID]
	return s, ok
}

// Writes counts every status write received
func (f *FakeStore) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *FakeStore) GetTask(_ context.Context, buildID, taskID string) (*models.BuildTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskKey{buildID, taskID}]
	if !ok {
		return nil, fmt.Errorf("task %s of build %s: %w", taskID, buildID, store.ErrNotFound)
	}
	return &task, nil
}

func (f *FakeStore) UpdateTaskStatus(_ context.Context, buildID, taskID string, status models.BuildStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	k := taskKey{buildID, taskID}
	task, ok := f.tasks[k]
	if !ok {
		return store.ErrNotFound
	}
	task.Status = status
	f.tasks[k] = task
	return nil
}

func (f *FakeStore) UpdateContainerStatus(_ context.Context, buildID, stageID, containerID string, status models.BuildStatus, startTime, endTime null.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	k := containerKey{buildID, stageID, containerID}
	c, ok := f.containers[k]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = status
	if startTime.Valid {
		c.StartTime = startTime
	}
	if endTime.Valid {
		c.EndTime = endTime
	}
	f.containers[k] = c
	return nil
}

func (f *FakeStore) UpdateStageStatus(_ context.Context, buildID, stageID string, status models.BuildStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	k := stageKey{buildID, stageID}
	s, ok := f.stages[k]
	if !ok {
		return store.ErrNotFound
	}
	s.Status = status
	f.stages[k] = s
	return nil
}

func (f *FakeStore) UpdateBuildStatus(_ context.Context, buildID string, status models.BuildStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if _, ok := f.builds[buildID]; !ok {
		return store.ErrNotFound
	}
	f.builds[buildID] = status
	return nil
}

func (f *FakeStore) UpdateStatusIfCurrently(_ context.Context, buildID string, expected, next models.BuildStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if current, ok := f.builds[buildID]; !ok || current != expected {
		return false, nil
	}
	f.builds[buildID] = next
	return true, nil
}

func (f *FakeStore) CountSkewedBuilds(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	skewed := make(map[string]struct{})
	for k, task := range f.tasks {
		if task.Status == models.StatusPause && f.builds[k.buildID] == models.StatusRunning {
			skewed[k.buildID] = struct{}{}
		}
	}
	return len(skewed), nil
}

func (f *FakeStore) FinishLatestRunningBuild(_ context.Context, latest models.LatestRunningBuild) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.summaries[latest.PipelineID] = latest
	return nil
}

func (f *FakeStore) GetPipeline(_ context.Context, pipelineID string) (*models.PipelineInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pipelines[pipelineID]
	if !ok {
		return nil, fmt.Errorf("pipeline %s: %w", pipelineID, store.ErrNotFound)
	}
	return &p, nil
}
