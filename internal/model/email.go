package model

import (
	"time"

	"github.com/deppfellow/schoolhub/internal/lib/email"
	"github.com/deppfellow/schoolhub/internal/validation"
)

// EmailMessage is one email addressed to one recipient, from queueing to
// the last delivery event reported by the provider.
type EmailMessage struct {
	ID                string         `json:"id" db:"id"`
	TenantID          string         `json:"-" db:"tenant_id"`
	UserID            *string        `json:"user_id" db:"user_id"`
	ToAddress         string         `json:"to_address" db:"to_address"`
	Category          email.Category `json:"category" db:"category"`
	Template          email.Template `json:"template" db:"template"`
	Subject           string         `json:"subject" db:"subject"`
	Data              map[string]any `json:"-" db:"data"`
	Status            email.Status   `json:"status" db:"status"`
	ProviderMessageID *string        `json:"provider_message_id" db:"provider_message_id"`
	Attempts          int            `json:"attempts" db:"attempts"`
	LastError         *string        `json:"last_error" db:"last_error"`
	QueuedAt          time.Time      `json:"queued_at" db:"queued_at"`
	SentAt            *time.Time     `json:"sent_at" db:"sent_at"`
	DeliveredAt       *time.Time     `json:"delivered_at" db:"delivered_at"`
	OpenedAt          *time.Time     `json:"opened_at" db:"opened_at"`
	ClickedAt         *time.Time     `json:"clicked_at" db:"clicked_at"`
	BouncedAt         *time.Time     `json:"bounced_at" db:"bounced_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// OutgoingEmail is the input of the email queue.
type OutgoingEmail struct {
	UserID   *string
	To       string
	Template email.Template
	// Category overrides the template's default category when set.
	Category email.Category
	Data     map[string]any
}

// ------------------------------------------------------------

type EmailAnalyticsQuery struct {
	From     time.Time `query:"from"`
	To       time.Time `query:"to"`
	Template string    `query:"template" validate:"omitempty,max=64"`
}

func (q *EmailAnalyticsQuery) Validate() error {
	if err := validation.Struct(q); err != nil {
		return err
	}

	var v validation.CustomValidationErrors
	if !q.From.IsZero() && !q.To.IsZero() && !q.To.After(q.From) {
		v.Add("to", "must be after from")
	}
	if q.Template != "" {
		if _, ok := email.Templates[email.Template(q.Template)]; !ok {
			v.Add("template", "is not a known template")
		}
	}
	return v.OrNil()
}

type ListEmailsQuery struct {
	Pagination
	Status   string `query:"status" validate:"omitempty,oneof=queued suppressed sent delivered opened clicked bounced complained failed"`
	Template string `query:"template" validate:"omitempty,max=64"`
	UserID   string `query:"user_id" validate:"omitempty,max=64"`
}

func (q *ListEmailsQuery) Validate() error {
	return validation.Struct(q)
}

type UpdatePreferencesPayload struct {
	Marketing          *bool `json:"marketing"`
	CourseUpdates      *bool `json:"course_updates"`
	LiveClassReminders *bool `json:"live_class_reminders"`
	SupportUpdates     *bool `json:"support_updates"`
}

func (p *UpdatePreferencesPayload) Validate() error {
	var v validation.CustomValidationErrors
	if p.Marketing == nil && p.CourseUpdates == nil && p.LiveClassReminders == nil && p.SupportUpdates == nil {
		v.Add("preferences", "at least one preference must be provided")
	}
	return v.OrNil()
}

// Apply merges the update into prefs.
func (p *UpdatePreferencesPayload) Apply(prefs email.Preferences) email.Preferences {
	if p.Marketing != nil {
		prefs.Marketing = *p.Marketing
	}
	if p.CourseUpdates != nil {
		prefs.CourseUpdates = *p.CourseUpdates
	}
	if p.LiveClassReminders != nil {
		prefs.LiveClassReminders = *p.LiveClassReminders
	}
	if p.SupportUpdates != nil {
		prefs.SupportUpdates = *p.SupportUpdates
	}
	return prefs
}

type PreviewEmailPayload struct {
	Template string `param:"template" validate:"required,max=64"`
}

func (p *PreviewEmailPayload) Validate() error {
	if err := validation.Struct(p); err != nil {
		return err
	}
	var v validation.CustomValidationErrors
	if _, ok := email.Templates[email.Template(p.Template)]; !ok {
		v.Add("template", "is not a known template")
	}
	return v.OrNil()
}
