package runcmd

import (
	"context"

	"buildctl/internal/app"
	"buildctl/internal/config"
	"buildctl/internal/database"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var Command = &cobra.Command{
	Use:   "run",
	Short: "Run service",
	Long:  "Run service from a selected list of services",
}

func init() {
	Command.AddCommand(serverCmd)
	Command.AddCommand(logtailCmd)
}

func mustDatabase(conf *config.BCConfig) *sqlx.DB {
	db, err := database.New(conf)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not connect to database")
	}

	return db
}

func mustRedis(conf *config.BCConfig) *redis.Client {
	client, err := app.NewRedisClient(context.Background(), conf)
	if err != nil {
		log.Fatal().Err(err).Str("host", conf.Counter.Host).Msg("Could not connect to redis")
	}
	return client
}
