package taskcontrol

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"buildctl/internal/models"
)

const (
	defaultPage     = 1
	defaultPageSize = 100
)

// ListModelTasks returns the task definitions of the given pipelines of a project, grouped by pipeline
func (c *Controller) ListModelTasks(ctx context.Context, projectID string, pipelineIDs []string) (map[string][]models.ModelTask, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidArgument)
	}

	grouped := make(map[string][]models.ModelTask)
	if len(pipelineIDs) == 0 {
		return grouped, nil
	}

	tasks, err := c.modelTasks.ListByPipelines(ctx, projectID, pipelineIDs)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		grouped[t.PipelineID] = append(grouped[t.PipelineID], t)
	}
	return grouped, nil
}

// ListPipelinesByAtomCode returns a page of the pipelines using an atom with the atom versions each of
// them uses. Non-positive page and page size fall back to 1 and 100.
func (c *Controller) ListPipelinesByAtomCode(ctx context.Context, atomCode, projectCode string, page, pageSize int) (*models.Page[models.PipelineAtomRel], error) {
	if atomCode == "" {
		return nil, fmt.Errorf("%w: atom code is required", ErrInvalidArgument)
	}
	if page <= 0 {
		page = defaultPage
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	count, err := c.modelTasks.CountPipelinesByAtomCode(ctx, atomCode, projectCode)
	if err != nil {
		return nil, err
	}
	rels, err := c.modelTasks.ListPipelinesByAtomCode(ctx, atomCode, projectCode, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	versions := make(map[string][]string)
	if len(rels) > 0 {
		pipelineIDs := make([]string, 0, len(rels))
		for _, r := range rels {
			pipelineIDs = append(pipelineIDs, r.PipelineID)
		}

		tasks, err := c.modelTasks.ListAtomVersions(ctx, atomCode, pipelineIDs)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			v := t.Version()
			if v == "" || slices.Contains(versions[t.PipelineID], v) {
				continue
			}
			versions[t.PipelineID] = append(versions[t.PipelineID], v)
		}
	}

	records := make([]models.PipelineAtomRel, 0, len(rels))
	for _, r := range rels {
		r.AtomVersion = strings.Join(versions[r.PipelineID], ",")
		records = append(records, r)
	}

	return &models.Page[models.PipelineAtomRel]{
		Page:     page,
		PageSize: pageSize,
		Count:    count,
		Records:  records,
	}, nil
}

