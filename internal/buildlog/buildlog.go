// Package buildlog carries the lines shown in a build's live log.
package buildlog

import (
	"context"
	"time"
)

type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Line is one line of a build's log. Tag and JobID correlate the line with the task and container
// that produced it.
type Line struct {
	BuildID      string    `json:"build_id"`
	Message      string    `json:"message"`
	Tag          string    `json:"tag"`
	JobID        string    `json:"job_id"`
	ExecuteCount int       `json:"execute_count"`
	Level        Level     `json:"level"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher appends lines to build logs
type Publisher interface {
	Publish(ctx context.Context, line Line) error
}

// Subscriber consumes published lines until the context ends
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(Line)) error
}

// Discard drops every line. Used when build logs are disabled.
type Discard struct{}

func (Discard) Publish(context.Context, Line) error {
	return nil
}
