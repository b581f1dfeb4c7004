package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deppfellow/schoolhub/internal/config"
	"github.com/deppfellow/schoolhub/internal/database"
	"github.com/deppfellow/schoolhub/internal/handler"
	"github.com/deppfellow/schoolhub/internal/lib/job"
	"github.com/deppfellow/schoolhub/internal/logger"
	"github.com/deppfellow/schoolhub/internal/repository"
	"github.com/deppfellow/schoolhub/internal/router"
	"github.com/deppfellow/schoolhub/internal/server"
	"github.com/deppfellow/schoolhub/internal/service"
)

const DefaultContextTimeout = 30

// bootstrap loads the config and builds the logger every command uses.
func bootstrap() (*config.Config, *logger.LoggerService, zerolog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, zerolog.Logger{}, err
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)
	return cfg, loggerService, log, nil
}

func newServeCommand() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the job workers and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loggerService, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer loggerService.Shutdown()

			if migrate {
				if err := database.Migrate(cmd.Context(), &log, cfg); err != nil {
					log.Error().Err(err).Msg("failed to migrate database")
					return err
				}
			}

			return serve(cfg, loggerService, &log)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before starting")
	return cmd
}

func serve(cfg *config.Config, loggerService *logger.LoggerService, log *zerolog.Logger) error {
	srv, err := server.New(cfg, log, loggerService)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize server")
		return err
	}

	repos := repository.NewRepositories(srv)
	services, err := service.NewService(srv, repos)
	if err != nil {
		log.Error().Err(err).Msg("could not create services")
		return err
	}

	handlers := handler.NewHandlers(srv, services)
	r := router.NewRouter(srv, handlers)
	srv.SetupHTTPServer(r)

	if err := srv.Job.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start job workers")
		return err
	}

	if cfg.Jobs.SchedulerOn() {
		scheduler, err := job.NewScheduler(cfg.Jobs, srv.Job.Client, log)
		if err != nil {
			log.Error().Err(err).Msg("failed to build job scheduler")
			return err
		}
		scheduler.Start()
		srv.Scheduler = scheduler
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultContextTimeout*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	log.Info().Msg("server exited properly")
	return nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loggerService, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer loggerService.Shutdown()

			if err := database.Migrate(cmd.Context(), &log, cfg); err != nil {
				log.Error().Err(err).Msg("failed to migrate database")
				return err
			}
			return nil
		},
	}
}
