package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/schoolhub/internal/config"
	"github.com/deppfellow/schoolhub/internal/lib/metrics"
)

type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestEmailSendTask_RoundTrip(t *testing.T) {
	task, err := NewEmailSendTask(EmailSendPayload{TenantID: "org_1", MessageID: "m-1"}, QueueCritical)
	require.NoError(t, err)
	assert.Equal(t, TaskEmailSend, task.Type())

	p, err := ParseEmailSendPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "org_1", p.TenantID)
	assert.Equal(t, "m-1", p.MessageID)
}

func TestParseEmailSendPayload_MissingFieldsSkipsRetry(t *testing.T) {
	_, err := ParseEmailSendPayload(asynq.NewTask(TaskEmailSend, []byte(`{"tenant_id":"org_1"}`)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestIsFinalAttempt(t *testing.T) {
	assert.False(t, IsFinalAttempt(0, EmailMaxRetry))
	assert.False(t, IsFinalAttempt(4, EmailMaxRetry))
	assert.True(t, IsFinalAttempt(5, EmailMaxRetry))
}

func TestInstrument_RecordsResult(t *testing.T) {
	logger := zerolog.Nop()
	m := metrics.New()

	ok := instrument("demo", func(context.Context, *asynq.Task) error { return nil }, &logger, m)
	fail := instrument("demo", func(context.Context, *asynq.Task) error { return errors.New("boom") }, &logger, m)

	require.NoError(t, ok.ProcessTask(context.Background(), asynq.NewTask("demo", nil)))
	require.Error(t, fail.ProcessTask(context.Background(), asynq.NewTask("demo", nil)))

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	results := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "schoolhub_jobs_processed_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "result" {
					results[l.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 1.0, results["success"])
	assert.Equal(t, 1.0, results["error"])
}

func TestScheduler_EnqueuesTasks(t *testing.T) {
	logger := zerolog.Nop()
	enq := &recordingEnqueuer{}

	cfg := config.DefaultJobsConfig()
	s, err := NewScheduler(cfg, enq, &logger)
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s.enqueue(NewSLASweepTask(), time.Minute)
	enq.err = asynq.ErrDuplicateTask
	s.enqueue(NewLiveClassRemindersTask(), time.Minute)

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskSLASweep, enq.tasks[0].Type())
}

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.DefaultJobsConfig()
	cfg.SLASweepSpec = "every now and then"

	_, err := NewScheduler(cfg, &recordingEnqueuer{}, &logger)
	assert.Error(t, err)
}

func TestUniqueWindow(t *testing.T) {
	every5m, err := cron.ParseStandard("@every 5m")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute-time.Second, uniqueWindow(every5m))
}
