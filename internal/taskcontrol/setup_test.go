package taskcontrol_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"buildctl/internal/buildlog"
	"buildctl/internal/cascade"
	"buildctl/internal/counter"
	"buildctl/internal/metrics"
	"buildctl/internal/models"
	"buildctl/internal/notify"
	"buildctl/internal/store/storetest"
	"buildctl/internal/taskcontrol"

	"github.com/guregu/null/v6"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendTemplated(ctx context.Context, msg notify.TemplateMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// recordingLog keeps every published build log line
type recordingLog struct {
	mu    sync.Mutex
	lines []buildlog.Line
}

func (r *recordingLog) Publish(_ context.Context, line buildlog.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return nil
}

func (r *recordingLog) Lines() []buildlog.Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]buildlog.Line(nil), r.lines...)
}

// brokenCounter fails the operations named in failing and delegates the rest
type brokenCounter struct {
	counter.Store
	failing map[string]bool
}

var errCounterDown = errors.New("dial tcp: connection refused")

func (b *brokenCounter) Get(ctx context.Context, key string) (int64, bool, error) {
	if b.failing["get"] {
		return 0, false, errCounterDown
	}
	return b.Store.Get(ctx, key)
}

func (b *brokenCounter) IncrementBelow(ctx context.Context, key string, limit int64) (int64, bool, error) {
	if b.failing["increment"] {
		return 0, false, errCounterDown
	}
	return b.Store.IncrementBelow(ctx, key, limit)
}

func (b *brokenCounter) Delete(ctx context.Context, key string) error {
	if b.failing["delete"] {
		return errCounterDown
	}
	return b.Store.Delete(ctx, key)
}

type fixture struct {
	store    *storetest.FakeStore
	counter  *counter.MemoryStore
	sender   *MockSender
	buildLog *recordingLog
	metrics  *metrics.Metrics
}

func newFixture() *fixture {
	return &fixture{
		store:    storetest.NewFakeStore(),
		counter:  counter.NewMemoryStore(0),
		sender:   &MockSender{},
		buildLog: &recordingLog{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
}

func (f *fixture) controller(counterStore counter.Store) *taskcontrol.Controller {
	if counterStore == nil {
		counterStore = f.counter
	}
	return taskcontrol.New(taskcontrol.Deps{
		Tasks:     f.store,
		Pipelines: f.store,
		Counter:   counterStore,
		Cascade:   cascade.NewWriter(f.store, f.store, f.store, f.store, f.store, f.metrics),
		Notifier:  notify.NewPauseNotifier(f.sender, notify.PauseTemplateCode, "DevOps", f.metrics),
		BuildLog:  f.buildLog,
		Metrics:   f.metrics,
	})
}

func (f *fixture) addTask(buildID, taskID string, opts *models.AdditionalOptions, buildStatus models.BuildStatus) {
	f.store.AddTask(models.BuildTask{
		BuildID:           buildID,
		TaskID:            taskID,
		PipelineID:        "p-1",
		ProjectID:         "proj",
		StageID:           "s-1",
		ContainerID:       "c-1",
		TaskName:          "Build-" + taskID,
		Status:            models.StatusQueue,
		AdditionalOptions: opts,
	}, buildStatus)
}

func (f *fixture) addPipeline(lastModifyUser string) {
	user := null.String{}
	if lastModifyUser != "" {
		user = null.StringFrom(lastModifyUser)
	}
	f.store.AddPipeline(models.PipelineInfo{
		PipelineID:     "p-1",
		ProjectID:      "proj",
		PipelineName:   "nightly",
		LastModifyUser: user,
	})
}

func retryOptions(maxRetries int) *models.AdditionalOptions {
	return &models.AdditionalOptions{Enable: true, RetryWhenFailed: true, RetryCount: maxRetries}
}
