package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"buildctl/internal/taskcontrol"
)

type RetryResponse struct {
	Retry bool `json:"retry"`
}

type PauseRequest struct {
	SeqID string `json:"seqId"`
}

type PauseResponse struct {
	Pause bool `json:"pause"`
}

type RetryStateResponse struct {
	BuildID  string `json:"buildId"`
	TaskID   string `json:"taskId"`
	Attempts int64  `json:"attempts"`
}

type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// ListPipelinesQuery is the query of the pipelines-by-atom listing. Zero page values select the
// defaults.
type ListPipelinesQuery struct {
	ProjectCode string
	Page        int
	PageSize    int
}

func parseListPipelinesQuery(values url.Values) (ListPipelinesQuery, error) {
	var errs []error
	q := ListPipelinesQuery{ProjectCode: strings.TrimSpace(values.Get("projectCode"))}

	parse := func(name string) int {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			return 0
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			errs = append(errs, fmt.Errorf("%s must be a non-negative integer", name))
			return 0
		}
		return v
	}
	q.Page = parse("page")
	q.PageSize = parse("pageSize")

	if err := errors.Join(errs...); err != nil {
		return q, fmt.Errorf("%w: %w", taskcontrol.ErrInvalidArgument, err)
	}
	return q, nil
}

// pipelineIDs reads the repeated and comma separated pipelineId parameters
func pipelineIDs(values url.Values) []string {
	var ids []string
	for _, v := range values["pipelineId"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
