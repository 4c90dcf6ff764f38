package postgres

import (
	"context"
	"fmt"

	"buildctl/internal/models"
)

func (s *Store) GetTask(ctx context.Context, buildID, taskID string) (*models.BuildTask, error) {
	var task models.BuildTask
	if err := s.db.GetContext(ctx, &task, `
SELECT build_id, task_id, pipeline_id, project_id, stage_id, container_id, task_name, task_seq,
       atom_code, status, start_time, end_time, additional_options
FROM process.build_task
WHERE build_id = $1 AND task_id = $2`, buildID, taskID); err != nil {
		return nil, fmt.Errorf("could not get task %s of build %s: %w", taskID, buildID, notFound(err))
	}

	opts, err := models.ParseAdditionalOptions(task.OptionsJSON)
	if err != nil {
		return nil, fmt.Errorf("invalid additional options of task %s: %w", taskID, err)
	}
	task.AdditionalOptions = opts

	return &task, nil
}

func (s *Store) UpdateTaskStatus(ctx context.Context, buildID, taskID string, status models.BuildStatus) error {
	return s.execOne(ctx, fmt.Sprintf("task %s of build %s", taskID, buildID),
		`UPDATE process.build_task SET status = $3 WHERE build_id = $1 AND task_id = $2`,
		buildID, taskID, status)
}
