package buildlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultQueue is the Redis list build log lines are pushed to
const DefaultQueue = "buildctl:buildlogs"

// RedisSink implements Publisher and Subscriber on a Redis list
type RedisSink struct {
	client *redis.Client
	queue  string
}

func NewRedisSink(client *redis.Client, queue string) *RedisSink {
	if queue == "" {
		queue = DefaultQueue
	}
	return &RedisSink{client: client, queue: queue}
}

// Publish appends a line to the queue
func (r *RedisSink) Publish(ctx context.Context, line Line) error {
	if line.Timestamp.IsZero() {
		line.Timestamp = time.Now()
	}
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, r.queue, data).Err()
}

// Subscribe pops lines and hands them to the handler until ctx is done. A panicking handler is
// recovered and the line is dropped.
func (r *RedisSink) Subscribe(ctx context.Context, handler func(Line)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			line, err := r.next(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error().
					Err(err).
					Msg("Error encountered when fetching build log line")
				continue
			}
			if line == nil {
				continue
			}

			if err := handle(handler, *line); err != nil {
				log.Error().
					Err(err).
					Str("build_id", line.BuildID).
					Msg("Error encountered when handling build log line")
			}
		}
	}
}

func (r *RedisSink) next(ctx context.Context) (*Line, error) {
	result, err := r.client.BLPop(ctx, 1*time.Second, r.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// No line available
			return nil, nil
		}
		return nil, fmt.Errorf("BLPOP from build log queue went bad. %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}

	var line Line
	if err := json.Unmarshal([]byte(result[1]), &line); err != nil {
		return nil, fmt.Errorf("could not parse build log line. %w", err)
	}
	return &line, nil
}

func handle(handler func(Line), line Line) (err error) {
	defer func() {
		if rcv := recover(); rcv != nil {
			log.Error().Interface("panic", rcv).Str("build_id", line.BuildID).Msg("Handler panicked")
			err = fmt.Errorf("handler panicked: %v", rcv)
		}
	}()

	handler(line)
	return nil
}
