package email

import "time"

// Status is the lifecycle state of a stored email message.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusSuppressed Status = "suppressed"
	StatusSent       Status = "sent"
	StatusDelivered  Status = "delivered"
	StatusOpened     Status = "opened"
	StatusClicked    Status = "clicked"
	StatusBounced    Status = "bounced"
	StatusComplained Status = "complained"
	StatusFailed     Status = "failed"
)

var progress = map[Status]int{
	StatusQueued:    0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusOpened:    3,
	StatusClicked:   4,
}

// Terminal statuses never change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuppressed, StatusBounced, StatusComplained, StatusFailed:
		return true
	}
	return false
}

// CanAdvanceTo reports whether a provider event may move s to next.
// Engagement only moves forward; bounces and complaints end the lifecycle.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.Terminal() || s == next {
		return false
	}

	switch next {
	case StatusBounced, StatusComplained, StatusFailed:
		return true
	}

	from, ok := progress[s]
	if !ok {
		return false
	}
	to, ok := progress[next]
	if !ok {
		return false
	}
	return to > from
}

// EventType is a delivery event reported by the provider webhook.
type EventType string

const (
	EventSent       EventType = "email.sent"
	EventDelivered  EventType = "email.delivered"
	EventOpened     EventType = "email.opened"
	EventClicked    EventType = "email.clicked"
	EventBounced    EventType = "email.bounced"
	EventComplained EventType = "email.complained"
)

// Status maps the event to the status it sets; ok is false for ignored events.
func (e EventType) Status() (Status, bool) {
	switch e {
	case EventSent:
		return StatusSent, true
	case EventDelivered:
		return StatusDelivered, true
	case EventOpened:
		return StatusOpened, true
	case EventClicked:
		return StatusClicked, true
	case EventBounced:
		return StatusBounced, true
	case EventComplained:
		return StatusComplained, true
	}
	return "", false
}

// DisablesMarketing reports whether the event should opt the user out of marketing.
func (e EventType) DisablesMarketing() bool {
	return e == EventBounced || e == EventComplained
}

// Event is the webhook body sent by the provider.
type Event struct {
	Type      EventType `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      struct {
		EmailID string   `json:"email_id"`
		To      []string `json:"to"`
	} `json:"data"`
}
