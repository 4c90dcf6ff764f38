package postgres_test

import (
	"context"
	"testing"
	"time"

	"buildctl/internal/config"
	"buildctl/internal/database"
	"buildctl/internal/models"
	"buildctl/internal/store/postgres"

	"github.com/guregu/null/v6"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupDB connects to the configured test database, applies the schema and clears every table. The
// test is skipped when no database is reachable.
func setupDB(t *testing.T) (*sqlx.DB, *postgres.Store) {
	t.Helper()

	conf, err := config.LoadConfig()
	require.NoError(t, err)

	db, err := database.New(conf)
	if err != nil {
		t.Skipf("postgres not reachable, skipping: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, database.EnsureSchema(ctx, db))

	_, err = db.Exec(`TRUNCATE TABLE process.build_task, process.build_container, process.build_stage,
		process.build_history, process.build_summary, process.pipeline_info, process.model_task`)
	require.NoError(t, err)

	return db, postgres.New(db)
}

func insertPipeline(t *testing.T, db *sqlx.DB, pipelineID, projectID, name string, lastModifyUser null.String) {
	_, err := db.Exec(`
		INSERT INTO process.pipeline_info (pipeline_id, project_id, pipeline_name, last_modify_user)
		VALUES ($1, $2, $3, $4)
	`, pipelineID, projectID, name, lastModifyUser)
	require.NoError(t, err, "Could not insert pipeline %q", pipelineID)
}

func insertBuild(t *testing.T, db *sqlx.DB, buildID, pipelineID string, status models.BuildStatus) {
	_, err := db.Exec(`
		INSERT INTO process.build_history (build_id, pipeline_id, project_id, build_num, status, start_user, start_time)
		VALUES ($1, $2, 'proj', 7, $3, 'bob', NOW())
	`, buildID, pipelineID, status)
	require.NoError(t, err, "Could not insert build %q", buildID)
}

func insertHierarchy(t *testing.T, db *sqlx.DB, buildID, pipelineID, taskID string, options string, start null.Time) {
	_, err := db.Exec(`
		INSERT INTO process.build_stage (build_id, stage_id, seq, status) VALUES ($1, 'stage-1', 1, 'RUNNING')
		ON CONFLICT DO NOTHING
	`, buildID)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO process.build_container (build_id, stage_id, container_id, status, start_time)
		VALUES ($1, 'stage-1', 'c-1', 'RUNNING', $2)
		ON CONFLICT DO NOTHING
	`, buildID, start)
	require.NoError(t, err)

	var opts any
	if options != "" {
		opts = options
	}
	_, err = db.Exec(`
		INSERT INTO process.build_task (build_id, task_id, pipeline_id, project_id, stage_id, container_id, task_name, status, additional_options)
		VALUES ($1, $2, $3, 'proj', 'stage-1', 'c-1', 'Compile', 'QUEUE', $4::jsonb)
	`, buildID, taskID, pipelineID, opts)
	require.NoError(t, err, "Could not insert task %q", taskID)
}

func insertModelTask(t *testing.T, db *sqlx.DB, projectID, pipelineID, taskID, atomCode string, seq int, params string) {
	_, err := db.Exec(`
		INSERT INTO process.model_task (project_id, pipeline_id, stage_id, container_id, task_id, task_seq, task_name, atom_code, task_params)
		VALUES ($1, $2, 'stage-1', 'c-1', $3, $4, $3, $5, $6::jsonb)
	`, projectID, pipelineID, taskID, seq, atomCode, params)
	require.NoError(t, err, "Could not insert model task %q", taskID)
}
