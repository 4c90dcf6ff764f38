package taskcontrol

import "errors"

var (
	// ErrTaskNotFound is returned when the task of a decision does not exist. Callers must not act as
	// if a decision was made.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidArgument is returned for missing identifiers
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCounterWrite is returned when a retry was allowed but could not be recorded. The task must not
	// be treated as retried.
	ErrCounterWrite = errors.New("could not record retry attempt")
)
