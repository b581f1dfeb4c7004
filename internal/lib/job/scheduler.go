package job

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/config"
)

// Scheduler enqueues periodic sweep tasks. Every replica may run one:
// asynq.Unique drops the duplicates enqueued by the others.
type Scheduler struct {
	cron     *cron.Cron
	enqueuer Enqueuer
	logger   *zerolog.Logger
}

func NewScheduler(cfg *config.JobsConfig, enqueuer Enqueuer, logger *zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		enqueuer: enqueuer,
		logger:   logger,
	}

	entries := []struct {
		spec string
		task func() *asynq.Task
	}{
		{cfg.SLASweepSpec, NewSLASweepTask},
		{cfg.ReminderSpec, NewLiveClassRemindersTask},
	}

	for _, e := range entries {
		schedule, err := cron.ParseStandard(e.spec)
		if err != nil {
			return nil, err
		}
		build := e.task
		s.cron.Schedule(schedule, cron.FuncJob(func() {
			s.enqueue(build(), uniqueWindow(schedule))
		}))
	}

	return s, nil
}

// uniqueWindow is a bit shorter than the schedule interval so the next tick
// is never rejected as a duplicate of the previous one.
func uniqueWindow(schedule cron.Schedule) time.Duration {
	now := time.Now()
	next := schedule.Next(now)
	interval := schedule.Next(next).Sub(next)
	if interval <= 2*time.Second {
		return time.Second
	}
	return interval - time.Second
}

func (s *Scheduler) enqueue(task *asynq.Task, unique time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.enqueuer.EnqueueContext(ctx, task, asynq.Unique(unique))
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask):
		s.logger.Debug().Str("type", task.Type()).Msg("periodic task already enqueued")
	case err != nil:
		s.logger.Error().Err(err).Str("type", task.Type()).Msg("failed to enqueue periodic task")
	default:
		s.logger.Debug().Str("type", task.Type()).Msg("periodic task enqueued")
	}
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info().Int("entries", len(s.cron.Entries())).Msg("starting job scheduler")
	s.cron.Start()
}

// Stop prevents new ticks and waits for a running tick to return.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
