// Package janitor runs the periodic housekeeping jobs of the controller: sweeping expired retry
// counters held in memory and probing for builds left RUNNING after one of their tasks paused.
package janitor

import (
	"context"
	"fmt"
	"time"

	"buildctl/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper drops expired entries and reports how many were removed
type Sweeper interface {
	Sweep() int
}

// SkewCounter counts builds still RUNNING while one of their tasks is PAUSE
type SkewCounter interface {
	CountSkewedBuilds(ctx context.Context) (int, error)
}

type Options struct {
	SweepCron     string
	SkewProbeCron string
	Sweeper       Sweeper     // nil disables the sweep job
	Builds        SkewCounter // nil disables the skew probe
	Metrics       *metrics.Metrics
	ProbeTimeout  time.Duration
}

type Janitor struct {
	cron    *cron.Cron
	opts    Options
	entries map[string]cron.EntryID

	isRunning  bool
	context    context.Context
	cancelFunc context.CancelFunc
}

// New creates a janitor. Cron expressions accept an optional seconds field and the @every and
// CRON_TZ forms.
func New(opts Options) *Janitor {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 30 * time.Second
	}

	c := cron.New(
		cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Janitor{
		cron:    c,
		opts:    opts,
		entries: make(map[string]cron.EntryID),
	}
}

// Start registers the enabled jobs and starts the cron loop
func (j *Janitor) Start(ctx context.Context) error {
	if j.isRunning {
		return nil
	}
	j.context, j.cancelFunc = context.WithCancel(ctx)

	if j.opts.Sweeper != nil && j.opts.SweepCron != "" {
		if err := j.add("counter_sweep", j.opts.SweepCron, func() { j.Sweep() }); err != nil {
			j.cancelFunc()
			return err
		}
	}
	if j.opts.Builds != nil && j.opts.SkewProbeCron != "" {
		if err := j.add("skew_probe", j.opts.SkewProbeCron, func() {
			if _, err := j.ProbeSkew(j.context); err != nil {
				log.Error().Err(err).Msg("Pause skew probe failed")
			}
		}); err != nil {
			j.cancelFunc()
			return err
		}
	}

	j.isRunning = true
	j.cron.Start()
	log.Info().Int("jobs", len(j.entries)).Msg("Janitor started")
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish
func (j *Janitor) Stop() {
	if !j.isRunning {
		return
	}

	j.cancelFunc()
	<-j.cron.Stop().Done()
	for name, id := range j.entries {
		j.cron.Remove(id)
		delete(j.entries, name)
	}
	j.isRunning = false
}

// Jobs returns the names of the registered jobs
func (j *Janitor) Jobs() []string {
	names := make([]string, 0, len(j.entries))
	for name := range j.entries {
		names = append(names, name)
	}
	return names
}

// Sweep runs the counter sweep once
func (j *Janitor) Sweep() int {
	if j.opts.Sweeper == nil {
		return 0
	}
	removed := j.opts.Sweeper.Sweep()
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Swept expired retry counters")
	}
	return removed
}

// ProbeSkew counts the skewed builds once and publishes the count on the skew gauge
func (j *Janitor) ProbeSkew(ctx context.Context) (int, error) {
	if j.opts.Builds == nil {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, j.opts.ProbeTimeout)
	defer cancel()

	n, err := j.opts.Builds.CountSkewedBuilds(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not count skewed builds: %w", err)
	}

	j.opts.Metrics.SetPauseSkew(n)
	if n > 0 {
		log.Warn().
			Int("builds", n).
			Msg("Builds still RUNNING with a paused task, waiting for the engine to reconcile")
	}
	return n, nil
}

func (j *Janitor) add(name, spec string, fn func()) error {
	id, err := j.cron.AddFunc(spec, fn)
	if err != nil {
		log.Error().
			Err(err).
			Str("job", name).
			Str("cron", spec).
			Msg("Failed to schedule janitor job")
		return fmt.Errorf("invalid cron expression %q for %s: %w", spec, name, err)
	}
	j.entries[name] = id
	return nil
}
