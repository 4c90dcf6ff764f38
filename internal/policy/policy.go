// Package policy decides whether a task is retried after a failure or paused before it executes. The
// functions here do no I/O.
package policy

import (
	"strings"

	"buildctl/internal/models"
)

// Controls are a task's retry and pause settings with absence already resolved. The zero value
// disables both retry and pause.
type Controls struct {
	RetryEnabled     bool
	MaxRetries       int64
	RetryCondition   string
	PauseBeforeExec  bool
	PauseSubscribers []string
}

// Resolve turns a task's optional additional options into Controls. Legacy tasks without options get
// the zero Controls.
func Resolve(opts *models.AdditionalOptions) Controls {
	if opts == nil {
		return Controls{}
	}

	c := Controls{
		RetryEnabled:     opts.RetryWhenFailed,
		MaxRetries:       int64(opts.RetryCount),
		RetryCondition:   opts.RetryCondition,
		PauseBeforeExec:  opts.PauseBeforeExec,
		PauseSubscribers: normalize(opts.SubscriptionPauseUser),
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// RetryWhenFailure reports whether a failed task with the given number of attempts so far is retried.
// Negative attempt counts count as zero.
func RetryWhenFailure(c Controls, attempts int64) bool {
	if attempts < 0 {
		attempts = 0
	}
	return c.RetryEnabled && attempts < c.MaxRetries
}

// PauseBeforeExec reports whether the task pauses before it executes
func PauseBeforeExec(c Controls) bool {
	return c.PauseBeforeExec
}

// ResolveRecipients picks who is told about a paused task: the explicit subscribers when there are any,
// otherwise the pipeline's last modifier. Returns nil when neither is known.
func ResolveRecipients(subscribers []string, lastModifyUser string) []string {
	if users := normalize(subscribers); len(users) > 0 {
		return users
	}
	if user := strings.TrimSpace(lastModifyUser); user != "" {
		return []string{user}
	}
	return nil
}

// normalize trims user IDs and drops blanks and duplicates, keeping the first occurrence order
func normalize(users []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
