package statecmd

import (
	"context"
	"fmt"
	"time"

	"buildctl/internal/app"
	"buildctl/internal/config"
	"buildctl/internal/counter"
	"buildctl/internal/logging"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var Command = &cobra.Command{
	Use:   "retry-state",
	Short: "Inspect or clear the retry counter of a task",
	Long: `Reads or deletes the number of retries recorded for a task of a build. Always reads redis, a memory
counter backend lives inside the server process.`,
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the recorded retry attempts of a task",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCounter(cmd, func(ctx context.Context, store counter.Store, key string) error {
			n, found, err := store.Get(ctx, key)
			if err != nil {
				return err
			}
			if !found {
				n = 0
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", key, n)
			return err
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the retry counter of a task",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCounter(cmd, func(ctx context.Context, store counter.Store, key string) error {
			if err := store.Delete(ctx, key); err != nil {
				return err
			}
			log.Info().Str("key", key).Msg("Retry counter cleared")
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{getCmd, clearCmd} {
		c.Flags().String("build", "", "build id")
		c.Flags().String("task", "", "task id")
		_ = c.MarkFlagRequired("build")
		_ = c.MarkFlagRequired("task")
		Command.AddCommand(c)
	}
}

func withCounter(cmd *cobra.Command, fn func(ctx context.Context, store counter.Store, key string) error) error {
	conf := config.FromCobraCmd(cmd)
	logging.Setup(conf)

	buildID, _ := cmd.Flags().GetString("build")
	taskID, _ := cmd.Flags().GetString("task")

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	rdb, err := app.NewRedisClient(ctx, conf)
	if err != nil {
		return fmt.Errorf("could not connect to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Could not close redis cleanly")
		}
	}()

	store := counter.NewRedisStore(rdb, conf.Counter.TTL)
	prefix := conf.Counter.KeyPrefix
	if prefix == "" {
		prefix = counter.DefaultKeyPrefix
	}
	return fn(ctx, store, counter.KeyWithPrefix(prefix, buildID, taskID))
}
