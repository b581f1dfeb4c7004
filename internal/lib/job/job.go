// Package job runs background work on Asynq, a Redis-backed task queue.
//
// Producers enqueue through JobService.Client. Services register their
// task handlers with Register before Start is called.
package job

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/config"
	"github.com/deppfellow/schoolhub/internal/lib/metrics"
)

// Enqueuer is the part of asynq.Client the services use.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobService holds the Asynq client (enqueue) and server (workers).
type JobService struct {
	Client *asynq.Client

	server  *asynq.Server
	mux     *asynq.ServeMux
	logger  *zerolog.Logger
	metrics *metrics.Metrics
}

// NewJobService configures the client and the worker server against the
// Redis instance from cfg. Queue weights give critical mail most workers.
func NewJobService(logger *zerolog.Logger, cfg *config.Config, m *metrics.Metrics) *JobService {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Address}

	concurrency := 10
	if cfg.Jobs != nil && cfg.Jobs.Concurrency > 0 {
		concurrency = cfg.Jobs.Concurrency
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queueWeights,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error().
				Err(err).
				Str("type", task.Type()).
				Int("retry", retried).
				Int("max_retry", maxRetry).
				Msg("background task failed")
		}),
		ShutdownTimeout: 10 * time.Second,
	})

	return &JobService{
		Client:  asynq.NewClient(redisOpt),
		server:  server,
		mux:     asynq.NewServeMux(),
		logger:  logger,
		metrics: m,
	}
}

// Register routes a task type to fn. Every run is logged and counted.
func (j *JobService) Register(taskType string, fn func(ctx context.Context, t *asynq.Task) error) {
	j.mux.Handle(taskType, instrument(taskType, fn, j.logger, j.metrics))
}

func instrument(taskType string, fn asynq.HandlerFunc, logger *zerolog.Logger, m *metrics.Metrics) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		taskID, _ := asynq.GetTaskID(ctx)

		taskLogger := logger.With().
			Str("type", taskType).
			Str("task_id", taskID).
			Logger()

		err := fn(ctx, t)
		m.JobResult(taskType, err)

		if err != nil {
			taskLogger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("task returned error")
			return err
		}

		taskLogger.Debug().Dur("duration", time.Since(start)).Msg("task completed")
		return nil
	})
}

// Start launches the workers in the background.
func (j *JobService) Start() error {
	j.logger.Info().Msg("starting background job server")
	return j.server.Start(j.mux)
}

// Stop waits for running tasks, then closes the client.
func (j *JobService) Stop() {
	j.logger.Info().Msg("stopping background job server")
	j.server.Shutdown()
	if err := j.Client.Close(); err != nil {
		j.logger.Error().Err(err).Msg("failed to close job client")
	}
}
