package postgres

import (
	"context"
	"fmt"

	"buildctl/internal/models"

	"github.com/guregu/null/v6"
)

func (s *Store) UpdateContainerStatus(ctx context.Context, buildID, stageID, containerID string, status models.BuildStatus, startTime, endTime null.Time) error {
	return s.execOne(ctx, fmt.Sprintf("container %s of build %s", containerID, buildID), `
UPDATE process.build_container
SET status     = $4,
    start_time = COALESCE($5, start_time),
    end_time   = COALESCE($6, end_time)
WHERE build_id = $1 AND stage_id = $2 AND container_id = $3`,
		buildID, stageID, containerID, status, startTime, endTime)
}

func (s *Store) UpdateStageStatus(ctx context.Context, buildID, stageID string, status models.BuildStatus) error {
	return s.execOne(ctx, fmt.Sprintf("stage %s of build %s", stageID, buildID),
		`UPDATE process.build_stage SET status = $3 WHERE build_id = $1 AND stage_id = $2`,
		buildID, stageID, status)
}

func (s *Store) UpdateBuildStatus(ctx context.Context, buildID string, status models.BuildStatus) error {
	return s.execOne(ctx, fmt.Sprintf("build %s", buildID),
		`UPDATE process.build_history SET status = $2 WHERE build_id = $1`,
		buildID, status)
}

func (s *Store) UpdateStatusIfCurrently(ctx context.Context, buildID string, expected, next models.BuildStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE process.build_history SET status = $3 WHERE build_id = $1 AND status = $2`,
		buildID, expected, next)
	if err != nil {
		return false, fmt.Errorf("could not update build %s from %s to %s: %w", buildID, expected, next, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) CountSkewedBuilds(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `
SELECT COUNT(DISTINCT b.build_id)
FROM process.build_history b
         INNER JOIN process.build_task t ON t.build_id = b.build_id
WHERE b.status = $1
  AND t.status = $2`, models.StatusRunning, models.StatusPause); err != nil {
		return 0, fmt.Errorf("could not count skewed builds: %w", err)
	}
	return count, nil
}

// FinishLatestRunningBuild records the build as the pipeline's latest build and frees the running slot
// if the build holds it. A zero build number or empty user keeps the cached values.
func (s *Store) FinishLatestRunningBuild(ctx context.Context, latest models.LatestRunningBuild) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO process.build_summary (pipeline_id, latest_build_id, latest_build_num, latest_status, latest_start_user, latest_end_time)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW())
ON CONFLICT (pipeline_id) DO UPDATE
    SET latest_build_id   = EXCLUDED.latest_build_id,
        latest_build_num  = CASE WHEN EXCLUDED.latest_build_num > 0 THEN EXCLUDED.latest_build_num ELSE build_summary.latest_build_num END,
        latest_status     = EXCLUDED.latest_status,
        latest_start_user = COALESCE(EXCLUDED.latest_start_user, build_summary.latest_start_user),
        latest_end_time   = EXCLUDED.latest_end_time,
        running_build_id  = CASE WHEN build_summary.running_build_id = EXCLUDED.latest_build_id THEN NULL ELSE build_summary.running_build_id END`,
		latest.PipelineID, latest.BuildID, latest.BuildNum, latest.Status, latest.UserID)
	if err != nil {
		return fmt.Errorf("could not finish latest running build %s of pipeline %s: %w", latest.BuildID, latest.PipelineID, err)
	}
	return nil
}
