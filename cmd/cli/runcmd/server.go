package runcmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"buildctl/internal/api"
	"buildctl/internal/app"
	"buildctl/internal/config"
	"buildctl/internal/database"
	"buildctl/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the HTTP API and the janitor",
	Run: func(cmd *cobra.Command, args []string) {
		conf := config.FromCobraCmd(cmd)
		logging.Setup(conf)
		log.Info().Msg("Running server process")

		db := mustDatabase(conf)
		var rdb *redis.Client
		if app.NeedsRedis(conf) {
			rdb = mustRedis(conf)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("Could not close db cleanly on shutdown")
			}
			if rdb != nil {
				if err := rdb.Close(); err != nil {
					log.Error().Err(err).Msg("Could not close redis cleanly on shutdown")
				}
			}
			cancel()
		}()

		if err := database.EnsureSchema(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Could not prepare database")
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		a, err := app.New(conf, db, rdb, reg)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not set up controller")
		}

		if err := a.Janitor.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start janitor")
		}
		defer a.Janitor.Stop()

		srv := &http.Server{
			Addr:              conf.ServerAddress(),
			Handler:           api.New(a.Controller, reg),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("address", srv.Addr).Msg("Listening")
			errCh <- srv.ListenAndServe()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Server stopped unexpectedly")
			}
			return
		case sig := <-sigCh:
			log.Info().Msgf("Received signal %v, shutting down...", sig)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Could not shut down server cleanly")
		}
	},
}
