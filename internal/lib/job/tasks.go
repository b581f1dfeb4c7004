package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names stored in Redis. Asynq routes on these strings.
const (
	TaskEmailSend          = "email:send"
	TaskSLASweep           = "support:sla_sweep"
	TaskLiveClassReminders = "liveclass:reminders"
)

// Queue names and their worker share.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

var queueWeights = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// EmailMaxRetry is the retry budget of an email:send task.
const EmailMaxRetry = 5

// EmailSendPayload points at a stored email message. The worker loads
// everything else from the database so retries always see fresh state.
type EmailSendPayload struct {
	TenantID  string `json:"tenant_id"`
	MessageID string `json:"message_id"`
}

// NewEmailSendTask builds the delivery task for a queued message.
func NewEmailSendTask(p EmailSendPayload, queue string) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	if _, ok := queueWeights[queue]; !ok {
		queue = QueueDefault
	}

	return asynq.NewTask(
		TaskEmailSend,
		payload,
		asynq.MaxRetry(EmailMaxRetry),
		asynq.Queue(queue),
		asynq.Timeout(30*time.Second),
	), nil
}

// ParseEmailSendPayload decodes the payload of an email:send task.
func ParseEmailSendPayload(t *asynq.Task) (EmailSendPayload, error) {
	var p EmailSendPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal email payload: %w", err)
	}
	if p.MessageID == "" || p.TenantID == "" {
		return p, fmt.Errorf("email payload is missing tenant_id or message_id: %w", asynq.SkipRetry)
	}
	return p, nil
}

// NewSLASweepTask checks every open ticket for breached SLAs.
func NewSLASweepTask() *asynq.Task {
	return asynq.NewTask(
		TaskSLASweep,
		nil,
		asynq.MaxRetry(1),
		asynq.Queue(QueueDefault),
		asynq.Timeout(2*time.Minute),
	)
}

// NewLiveClassRemindersTask queues reminders for classes that start soon.
func NewLiveClassRemindersTask() *asynq.Task {
	return asynq.NewTask(
		TaskLiveClassReminders,
		nil,
		asynq.MaxRetry(1),
		asynq.Queue(QueueDefault),
		asynq.Timeout(time.Minute),
	)
}

// IsFinalAttempt reports whether the running task will not be retried on error.
func IsFinalAttempt(retryCount, maxRetry int) bool {
	return retryCount >= maxRetry
}
