package postgres_test

import (
	"context"
	"testing"
	"time"

	"buildctl/internal/models"
	"buildctl/internal/store"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetTask(t *testing.T) {
	db, s := setupDB(t)
	ctx := context.Background()

	insertPipeline(t, db, "p-1", "proj", "nightly", null.StringFrom("alice"))
	insertBuild(t, db, "b-1", "p-1", models.StatusRunning)
	insertHierarchy(t, db, "b-1", "p-1", "t-legacy", "", null.Time{})
	insertHierarchy(t, db, "b-1", "p-1", "t-retry", `{"retryWhenFailed":true,"retryCount":2}`, null.Time{})

	task, err := s.GetTask(ctx, "b-1", "t-legacy")
	require.NoError(t, err)
	assert.Nil(t, task.AdditionalOptions)
	assert.Equal(t, "stage-1", task.StageID)
	assert.Equal(t, "c-1", task.ContainerID)

	task, err = s.GetTask(ctx, "b-1", "t-retry")
	require.NoError(t, err)
	require.NotNil(t, task.AdditionalOptions)
	assert.True(t, task.AdditionalOptions.RetryWhenFailed)
	assert.Equal(t, 2, task.AdditionalOptions.RetryCount)

	_, err = s.GetTask(ctx, "b-1", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_StatusWrites(t *testing.T) {
	db, s := setupDB(t)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	insertPipeline(t, db, "p-1", "proj", "nightly", null.String{})
	insertBuild(t, db, "b-1", "p-1", models.StatusRunning)
	insertHierarchy(t, db, "b-1", "p-1", "t-1", `{"pauseBeforeExec":true}`, null.TimeFrom(start))

	require.NoError(t, s.UpdateTaskStatus(ctx, "b-1", "t-1", models.StatusPause))
	require.NoError(t, s.UpdateContainerStatus(ctx, "b-1", "stage-1", "c-1", models.StatusPause, null.Time{}, null.Time{}))
	require.NoError(t, s.UpdateStageStatus(ctx, "b-1", "stage-1", models.StatusPause))

	var container models.BuildContainer
	require.NoError(t, db.Get(&container, `SELECT * FROM process.build_container WHERE build_id = 'b-1'`))
	assert.Equal(t, models.StatusPause, container.Status)
	assert.True(t, container.StartTime.Valid, "start time must be left untouched")
	assert.True(t, start.Equal(container.StartTime.Time))
	assert.False(t, container.EndTime.Valid)

	assert.ErrorIs(t, s.UpdateTaskStatus(ctx, "b-1", "missing", models.StatusPause), store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateStageStatus(ctx, "b-1", "missing", models.StatusPause), store.ErrNotFound)
}

func TestStore_UpdateStatusIfCurrently(t *testing.T) {
	db, s := setupDB(t)
	ctx := context.Background()

	insertPipeline(t, db, "p-1", "proj", "nightly", null.String{})
	insertBuild(t, db, "b-running", "p-1", models.StatusRunning)
	insertBuild(t, db, "b-done", "p-1", models.StatusSucceed)

	ok, err := s.UpdateStatusIfCurrently(ctx, "b-running", models.StatusRunning, models.StatusPause)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateStatusIfCurrently(ctx, "b-done", models.StatusRunning, models.StatusPause)
	require.NoError(t, err)
	assert.False(t, ok)

	var status models.BuildStatus
	require.NoError(t, db.Get(&status, `SELECT status FROM process.build_history WHERE build_id = 'b-done'`))
	assert.Equal(t, models.StatusSucceed, status)
	require.NoError(t, db.Get(&status, `SELECT status FROM process.build_history WHERE build_id = 'b-running'`))
	assert.Equal(t, models.StatusPause, status)
}

func TestStore_FinishLatestRunningBuild(t *testing.T) {
	db, s := setupDB(t)
	ctx := context.Background()

	_, err := db.Exec(`
		INSERT INTO process.build_summary (pipeline_id, latest_build_id, latest_build_num, latest_status, latest_start_user, running_build_id)
		VALUES ('p-1', 'b-1', 7, 'RUNNING', 'bob', 'b-1')
	`)
	require.NoError(t, err)

	require.NoError(t, s.FinishLatestRunningBuild(ctx, models.LatestRunningBuild{
		PipelineID: "p-1",
		BuildID:    "b-1",
		Status:     models.StatusPause,
	}))

	var summary models.BuildSummary
	require.NoError(t, db.Get(&summary, `SELECT * FROM process.build_summary WHERE pipeline_id = 'p-1'`))
	assert.Equal(t, "b-1", summary.LatestBuildID.String)
	assert.Equal(t, "PAUSE", summary.LatestStatus.String)
	assert.Equal(t, 7, summary.LatestBuildNum)
	assert.Equal(t, "bob", summary.LatestStartUser.String)
	assert.True(t, summary.LatestEndTime.Valid)
	assert.False(t, summary.RunningBuildID.Valid)

	// a pipeline without a summary row gets one
	require.NoError(t, s.FinishLatestRunningBuild(ctx, models.LatestRunningBuild{PipelineID: "p-2", BuildID: "b-9", Status: models.StatusPause}))
	require.NoError(t, db.Get(&summary, `SELECT * FROM process.build_summary WHERE pipeline_id = 'p-2'`))
	assert.Equal(t, "b-9", summary.LatestBuildID.String)
	assert.False(t, summary.LatestStartUser.Valid)
}

func TestStore_CountSkewedBuilds(t *testing.T) {
	db, s := setupDB(t)
	ctx := context.Background()

	insertPipeline(t, db, "p-1", "proj", "nightly", null.String{})
	insertBuild(t, db, "b-1", "p-1", models.StatusRunning)
	insertBuild(t, db, "b-2", "p-1", models.StatusPause)
	insertHierarchy(t, db, "b-1", "p-1", "t-1", "", null.Time{})
	insertHierarchy(t, db, "b-1", "p-1", "t-2", "", null.Time{})
	insertHierarchy(t, db, "b-2", "p-1", "t-1", "", null.Time{})

	for _, key := range [][2]string{{"b-1", "t-1"}, {"b-1", "t-2"}, {"b-2", "t-1"}} {
		require.NoError(t, s.UpdateTaskStatus(ctx, key[0], key[1], models.StatusPause))
	}

	count, err := s.CountSkewedBuilds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_GetPipeline(t *testing.T) {
	db, s := setupDB(t)
	ctx := context.Background()

	insertPipeline(t, db, "p-1", "proj", "nightly", null.StringFrom("alice"))

	p, err := s.GetPipeline(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "nightly", p.PipelineName)
	assert.Equal(t, "alice", p.LastModifyUser.String)

	_, err = s.GetPipeline(ctx, "p-404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ModelTasks(t *testing.T) {
	db, s := setupDB(t)
	ctx := context.Background()

	insertPipeline(t, db, "p-1", "proj-a", "alpha", null.String{})
	insertPipeline(t, db, "p-2", "proj-a", "beta", null.String{})
	insertPipeline(t, db, "p-3", "proj-b", "gamma", null.String{})
	insertModelTask(t, db, "proj-a", "p-1", "t-1", "git", 1, `{"version":"1.*"}`)
	insertModelTask(t, db, "proj-a", "p-1", "t-2", "shell", 2, `{}`)
	insertModelTask(t, db, "proj-a", "p-2", "t-3", "git", 1, `{"version":"2.*"}`)
	insertModelTask(t, db, "proj-b", "p-3", "t-4", "git", 1, `{"version":"1.*"}`)

	tasks, err := s.ListByPipelines(ctx, "proj-a", []string{"p-1", "p-3"})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t-1", tasks[0].TaskID)
	assert.Equal(t, "1.*", tasks[0].Version())

	count, err := s.CountPipelinesByAtomCode(ctx, "git", "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	count, err = s.CountPipelinesByAtomCode(ctx, "git", "proj-a")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	rels, err := s.ListPipelinesByAtomCode(ctx, "git", "", 1, 10)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, "beta", rels[0].PipelineName)
	assert.Equal(t, "proj-a", rels[0].ProjectCode)

	versions, err := s.ListAtomVersions(ctx, "git", []string{"p-1", "p-2"})
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	empty, err := s.ListAtomVersions(ctx, "git", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
