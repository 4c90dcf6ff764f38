// Package counter holds the retry attempt counters shared by every controller instance.
package counter

import (
	"context"
	"errors"
)

// DefaultKeyPrefix is the key namespace of the retry attempt counters
const DefaultKeyPrefix = "process:task:failRetry:count:"

// ErrUnavailable wraps every failure to reach the counter store
var ErrUnavailable = errors.New("counter store unavailable")

// Store is a keyed integer counter. An absent key counts as zero.
type Store interface {
	// Get returns the current value and whether the key exists.
	Get(ctx context.Context, key string) (int64, bool, error)
	// Increment atomically adds one and returns the new value.
	Increment(ctx context.Context, key string) (int64, error)
	// IncrementBelow atomically adds one only while the value is below limit. It returns the value
	// after the call and whether it was incremented.
	IncrementBelow(ctx context.Context, key string, limit int64) (int64, bool, error)
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Key returns the counter key of a task in a build under the default prefix
func Key(buildID, taskID string) string {
	return KeyWithPrefix(DefaultKeyPrefix, buildID, taskID)
}

func KeyWithPrefix(prefix, buildID, taskID string) string {
	return prefix + buildID + ":" + taskID
}
