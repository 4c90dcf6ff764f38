package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/guregu/null/v6"
)

// ModelTask is a model representing the `process.model_task` table. It is the static definition of a
// task inside a pipeline model, as opposed to BuildTask which is one execution of it.
type ModelTask struct {
	ProjectID         string             `db:"project_id" json:"projectId"`
	PipelineID        string             `db:"pipeline_id" json:"pipelineId"`
	StageID           string             `db:"stage_id" json:"stageId"`
	ContainerID       string             `db:"container_id" json:"containerId"`
	TaskID            string             `db:"task_id" json:"taskId"`
	TaskSeq           int                `db:"task_seq" json:"taskSeq"`
	TaskName          string             `db:"task_name" json:"taskName"`
	AtomCode          string             `db:"atom_code" json:"atomCode"`
	ClassType         string             `db:"class_type" json:"classType"`
	TaskAtom          string             `db:"task_atom" json:"taskAtom"`
	OS                null.String        `db:"os" json:"os"`
	TaskParams        map[string]any     `db:"-" json:"taskParams"`
	AdditionalOptions *AdditionalOptions `db:"-" json:"additionalOptions"`
	ParamsJSON        []byte             `db:"task_params" json:"-"`
	OptionsJSON       []byte             `db:"additional_options" json:"-"`
}

// DecodeColumns fills TaskParams and AdditionalOptions from their raw JSON columns
func (t *ModelTask) DecodeColumns() error {
	t.TaskParams = map[string]any{}
	if raw := bytes.TrimSpace(t.ParamsJSON); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &t.TaskParams); err != nil {
			return fmt.Errorf("invalid task params of task %s: %w", t.TaskID, err)
		}
	}

	opts, err := ParseAdditionalOptions(t.OptionsJSON)
	if err != nil {
		return fmt.Errorf("invalid additional options of task %s: %w", t.TaskID, err)
	}
	t.AdditionalOptions = opts
	return nil
}

// Version returns the atom version recorded in the task params, or "" when there is none
func (t *ModelTask) Version() string {
	v, ok := t.TaskParams["version"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// PipelineAtomRel describes a pipeline that uses a given atom (plugin) and the atom versions it uses.
type PipelineAtomRel struct {
	PipelineID   string `db:"pipeline_id" json:"pipelineId"`
	PipelineName string `db:"pipeline_name" json:"pipelineName"`
	ProjectCode  string `db:"project_code" json:"projectCode"`
	AtomVersion  string `db:"-" json:"atomVersion"`
}

// Page is a single page of a paged listing
type Page[T any] struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Count    int64 `json:"count"`
	Records  []T   `json:"records"`
}
