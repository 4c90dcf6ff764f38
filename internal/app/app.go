// Package app assembles the controller and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"buildctl/internal/buildlog"
	"buildctl/internal/cascade"
	"buildctl/internal/config"
	"buildctl/internal/counter"
	"buildctl/internal/janitor"
	"buildctl/internal/metrics"
	"buildctl/internal/notify"
	"buildctl/internal/store"
	"buildctl/internal/store/postgres"
	"buildctl/internal/taskcontrol"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

var ErrRedisRequired = errors.New("a redis client is required")

type App struct {
	Controller *taskcontrol.Controller
	Janitor    *janitor.Janitor
	Metrics    *metrics.Metrics
	Counter    counter.Store
	BuildLog   buildlog.Publisher
}

// NewRedisClient connects to the redis holding the retry counters and build log queue
func NewRedisClient(ctx context.Context, conf *config.BCConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Counter.Host,
		Password: conf.Counter.Password,
		DB:       conf.Counter.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// NeedsRedis reports whether the configuration uses redis at all
func NeedsRedis(conf *config.BCConfig) bool {
	return counterBackend(conf) == BackendRedis || conf.BuildLog.Enabled
}

// New wires the controller. rdb may be nil when NeedsRedis is false.
func New(conf *config.BCConfig, db *sqlx.DB, rdb *redis.Client, reg prometheus.Registerer) (*App, error) {
	m := metrics.New(reg)
	pg := postgres.New(db)

	counterStore, sweeper, err := NewCounter(conf, rdb)
	if err != nil {
		return nil, err
	}

	var publisher buildlog.Publisher = buildlog.Discard{}
	if conf.BuildLog.Enabled {
		if rdb == nil {
			return nil, fmt.Errorf("%w for build logs", ErrRedisRequired)
		}
		publisher = buildlog.NewRedisSink(rdb, conf.BuildLog.Queue)
	}

	sender, err := newSender(conf)
	if err != nil {
		return nil, err
	}

	pipelines := store.NewCachedPipelineStore(pg, conf.PipelineCache.Size, conf.PipelineCache.TTL)
	ctrl := taskcontrol.New(taskcontrol.Deps{
		Tasks:      pg,
		Pipelines:  pipelines,
		ModelTasks: pg,
		Counter:    counterStore,
		Cascade:    cascade.NewWriter(pg, pg, pg, pg, pg, m),
		Notifier:   notify.NewPauseNotifier(sender, conf.Notify.TemplateCode, conf.Notify.Sender, m),
		BuildLog:   publisher,
		Metrics:    m,
		KeyPrefix:  conf.Counter.KeyPrefix,
		RetryDelay: conf.Retry.Delay,
	})

	opts := janitor.Options{
		SweepCron:     conf.Counter.SweepCron,
		SkewProbeCron: conf.Janitor.SkewProbeCron,
		Builds:        pg,
		Metrics:       m,
	}
	if sweeper != nil {
		opts.Sweeper = sweeper
	}

	return &App{
		Controller: ctrl,
		Janitor:    janitor.New(opts),
		Metrics:    m,
		Counter:    counterStore,
		BuildLog:   publisher,
	}, nil
}

// NewCounter creates the configured counter store. The memory store is also returned as a sweeper.
func NewCounter(conf *config.BCConfig, rdb *redis.Client) (counter.Store, *counter.MemoryStore, error) {
	switch backend := counterBackend(conf); backend {
	case BackendRedis:
		if rdb == nil {
			return nil, nil, fmt.Errorf("%w for the retry counter", ErrRedisRequired)
		}
		return counter.NewRedisStore(rdb, conf.Counter.TTL), nil, nil
	case BackendMemory:
		log.Warn().Msg("Retry counters are held in memory and are not shared between instances")
		mem := counter.NewMemoryStore(conf.Counter.TTL)
		return mem, mem, nil
	default:
		return nil, nil, fmt.Errorf("unknown counter backend %q", backend)
	}
}

func newSender(conf *config.BCConfig) (notify.Sender, error) {
	if !conf.Notify.Enabled {
		return notify.LogSender{}, nil
	}
	return notify.NewMailSender(notify.MailConfig{
		Host:     conf.Notify.SMTP.Host,
		Port:     conf.Notify.SMTP.Port,
		User:     conf.Notify.SMTP.User,
		Password: conf.Notify.SMTP.Password,
		From:     conf.Notify.SMTP.From,
		Domain:   conf.Notify.EmailDomain,
	}, nil)
}

func counterBackend(conf *config.BCConfig) string {
	return strings.ToLower(strings.TrimSpace(conf.Counter.Backend))
}
