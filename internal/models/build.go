package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// This file contains the build runtime models under the `process` schema

type BuildStatus string

const (
	StatusQueue     BuildStatus = "QUEUE"
	StatusRunning   BuildStatus = "RUNNING"
	StatusPause     BuildStatus = "PAUSE"
	StatusSucceed   BuildStatus = "SUCCEED"
	StatusFailed    BuildStatus = "FAILED"
	StatusCanceled  BuildStatus = "CANCELED"
	StatusTerminate BuildStatus = "TERMINATE"
	StatusSkip      BuildStatus = "SKIP"
)

// IsFinished reports whether the status is terminal. PAUSE is not terminal, a paused build can be resumed.
func (s BuildStatus) IsFinished() bool {
	switch s {
	case StatusSucceed, StatusFailed, StatusCanceled, StatusTerminate, StatusSkip:
		return true
	}
	return false
}

// BuildTask is a model representing the `process.build_task` table. One row per task instance inside
// one build execution.
type BuildTask struct {
	BuildID           string             `db:"build_id"`
	TaskID            string             `db:"task_id"`
	PipelineID        string             `db:"pipeline_id"`
	ProjectID         string             `db:"project_id"`
	StageID           string             `db:"stage_id"`
	ContainerID       string             `db:"container_id"`
	TaskName          string             `db:"task_name"`
	TaskSeq           int                `db:"task_seq"`
	AtomCode          string             `db:"atom_code"`
	Status            BuildStatus        `db:"status"`
	StartTime         null.Time          `db:"start_time"`
	EndTime           null.Time          `db:"end_time"`
	AdditionalOptions *AdditionalOptions `db:"-"`                  // Decoded additional options. nil means a legacy/default task
	OptionsJSON       []byte             `db:"additional_options"` // Raw JSON of the additional options column
}

// BuildContainer is a model representing the `process.build_container` table (a job inside a stage)
type BuildContainer struct {
	BuildID     string      `db:"build_id"`
	StageID     string      `db:"stage_id"`
	ContainerID string      `db:"container_id"`
	Status      BuildStatus `db:"status"`
	StartTime   null.Time   `db:"start_time"`
	EndTime     null.Time   `db:"end_time"`
}

// BuildStage is a model representing the `process.build_stage` table
type BuildStage struct {
	BuildID string      `db:"build_id"`
	StageID string      `db:"stage_id"`
	Seq     int         `db:"seq"`
	Status  BuildStatus `db:"status"`
}

// BuildHistory is a model representing the `process.build_history` table. One row per build.
type BuildHistory struct {
	BuildID    string      `db:"build_id"`
	PipelineID string      `db:"pipeline_id"`
	ProjectID  string      `db:"project_id"`
	BuildNum   int         `db:"build_num"`
	Status     BuildStatus `db:"status"`
	StartUser  string      `db:"start_user"`
	StartTime  null.Time   `db:"start_time"`
	EndTime    null.Time   `db:"end_time"`
}

// BuildSummary is a model representing the `process.build_summary` table. It caches, per pipeline, the
// latest build and the build currently occupying the running slot.
type BuildSummary struct {
	PipelineID      string      `db:"pipeline_id"`
	LatestBuildID   null.String `db:"latest_build_id"`
	LatestBuildNum  int         `db:"latest_build_num"`
	LatestStatus    null.String `db:"latest_status"`
	LatestStartUser null.String `db:"latest_start_user"`
	LatestEndTime   null.Time   `db:"latest_end_time"`
	RunningBuildID  null.String `db:"running_build_id"`
}

// LatestRunningBuild carries the values written when a build leaves the pipeline's running slot.
// A zero BuildNum or empty UserID leaves the cached value unchanged.
type LatestRunningBuild struct {
	PipelineID string
	BuildID    string
	Status     BuildStatus
	BuildNum   int
	UserID     string
}

// PipelineInfo is a model representing the `process.pipeline_info` table
type PipelineInfo struct {
	PipelineID     string      `db:"pipeline_id"`
	ProjectID      string      `db:"project_id"`
	PipelineName   string      `db:"pipeline_name"`
	LastModifyUser null.String `db:"last_modify_user"`
	UpdatedAt      time.Time   `db:"updated_at"`
}
