package runcmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"buildctl/internal/buildlog"
	"buildctl/internal/config"
	"buildctl/internal/logging"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var logtailCmd = &cobra.Command{
	Use:   "logtail",
	Short: "Consumes the build log queue and writes the lines to the process log",
	Run: func(cmd *cobra.Command, args []string) {
		conf := config.FromCobraCmd(cmd)
		logging.Setup(conf)
		if !conf.BuildLog.Enabled {
			log.Fatal().Msg("Build logs are disabled, nothing to tail")
		}
		log.Info().Str("queue", conf.BuildLog.Queue).Msg("Running logtail process")

		rdb := mustRedis(conf)
		sink := buildlog.NewRedisSink(rdb, conf.BuildLog.Queue)

		ctx, cancel := context.WithCancel(context.Background())
		defer func() {
			cancel()
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("Could not close redis cleanly on shutdown")
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		errCh := make(chan error, 1)
		go func() {
			errCh <- sink.Subscribe(ctx, writeLine)
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Build log subscription ended")
			}
		case sig := <-sigCh:
			log.Info().Msgf("Received signal %v, shutting down...", sig)
		}
	},
}

func writeLine(line buildlog.Line) {
	level := zerolog.InfoLevel
	switch line.Level {
	case buildlog.LevelWarn:
		level = zerolog.WarnLevel
	case buildlog.LevelError:
		level = zerolog.ErrorLevel
	}

	log.WithLevel(level).
		Str("build_id", line.BuildID).
		Str("tag", line.Tag).
		Str("job_id", line.JobID).
		Int("execute_count", line.ExecuteCount).
		Time("line_time", line.Timestamp).
		Msg(line.Message)
}
