package postgres

import (
	"context"
	"fmt"

	"buildctl/internal/models"

	"github.com/jmoiron/sqlx"
)

func (s *Store) GetPipeline(ctx context.Context, pipelineID string) (*models.PipelineInfo, error) {
	var p models.PipelineInfo
	if err := s.db.GetContext(ctx, &p, `
SELECT pipeline_id, project_id, pipeline_name, last_modify_user, updated_at
FROM process.pipeline_info
WHERE pipeline_id = $1`, pipelineID); err != nil {
		return nil, fmt.Errorf("could not get pipeline %s: %w", pipelineID, notFound(err))
	}
	return &p, nil
}

func (s *Store) ListByPipelines(ctx context.Context, projectID string, pipelineIDs []string) ([]models.ModelTask, error) {
	if len(pipelineIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
SELECT * FROM process.model_task
WHERE project_id = ? AND pipeline_id IN (?)
ORDER BY pipeline_id, task_seq`, projectID, pipelineIDs)
	if err != nil {
		return nil, err
	}
	return s.selectModelTasks(ctx, query, args)
}

func (s *Store) CountPipelinesByAtomCode(ctx context.Context, atomCode, projectCode string) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, `
SELECT COUNT(DISTINCT pipeline_id)
FROM process.model_task
WHERE atom_code = $1 AND ($2 = '' OR project_id = $2)`, atomCode, projectCode); err != nil {
		return 0, fmt.Errorf("could not count pipelines of atom %s: %w", atomCode, err)
	}
	return count, nil
}

func (s *Store) ListPipelinesByAtomCode(ctx context.Context, atomCode, projectCode string, offset, limit int) ([]models.PipelineAtomRel, error) {
	var rels []models.PipelineAtomRel
	if err := s.db.SelectContext(ctx, &rels, `
SELECT DISTINCT m.pipeline_id, p.pipeline_name, m.project_id AS project_code
FROM process.model_task m
         INNER JOIN process.pipeline_info p ON p.pipeline_id = m.pipeline_id
WHERE m.atom_code = $1 AND ($2 = '' OR m.project_id = $2)
ORDER BY p.pipeline_name, m.pipeline_id
LIMIT $3 OFFSET $4`, atomCode, projectCode, limit, offset); err != nil {
		return nil, fmt.Errorf("could not list pipelines of atom %s: %w", atomCode, err)
	}
	return rels, nil
}

func (s *Store) ListAtomVersions(ctx context.Context, atomCode string, pipelineIDs []string) ([]models.ModelTask, error) {
	if len(pipelineIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
SELECT * FROM process.model_task
WHERE atom_code = ? AND pipeline_id IN (?)
ORDER BY pipeline_id, task_seq`, atomCode, pipelineIDs)
	if err != nil {
		return nil, err
	}
	return s.selectModelTasks(ctx, query, args)
}

func (s *Store) selectModelTasks(ctx context.Context, query string, args []any) ([]models.ModelTask, error) {
	var tasks []models.ModelTask
	if err := s.db.SelectContext(ctx, &tasks, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("could not list model tasks: %w", err)
	}
	for i := range tasks {
		if err := tasks[i].DecodeColumns(); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}
