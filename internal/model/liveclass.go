package model

import (
	"strings"
	"time"

	"github.com/deppfellow/schoolhub/internal/validation"
)

type LiveClassProvider string

const (
	ProviderZoom       LiveClassProvider = "zoom"
	ProviderGoogleMeet LiveClassProvider = "google_meet"
	ProviderTeams      LiveClassProvider = "teams"
	ProviderJitsi      LiveClassProvider = "jitsi"
)

type LiveClassStatus string

const (
	LiveClassScheduled LiveClassStatus = "scheduled"
	LiveClassCancelled LiveClassStatus = "cancelled"
	LiveClassCompleted LiveClassStatus = "completed"
)

const (
	MinLiveClassMinutes = 15
	MaxLiveClassMinutes = 480
)

// Live class error codes returned to clients.
const (
	CodeLiveClassOverlap = "LIVE_CLASS_OVERLAP"
	CodeLiveClassInPast  = "LIVE_CLASS_IN_PAST"
	CodeLiveClassNotOpen = "LIVE_CLASS_NOT_SCHEDULED"
)

// LiveClass is a session hosted by an external video provider. Only the
// meeting metadata is stored.
type LiveClass struct {
	Base
	TenantID        string            `json:"-" db:"tenant_id"`
	CourseID        string            `json:"course_id" db:"course_id"`
	Title           string            `json:"title" db:"title"`
	Provider        LiveClassProvider `json:"provider" db:"provider"`
	MeetingID       string            `json:"meeting_id" db:"meeting_id"`
	JoinURL         string            `json:"join_url" db:"join_url"`
	Passcode        string            `json:"passcode,omitempty" db:"passcode"`
	StartsAt        time.Time         `json:"starts_at" db:"starts_at"`
	DurationMinutes int               `json:"duration_minutes" db:"duration_minutes"`
	Status          LiveClassStatus   `json:"status" db:"status"`
	ReminderSentAt  *time.Time        `json:"reminder_sent_at,omitempty" db:"reminder_sent_at"`
}

// EndsAt is the scheduled end of the class.
func (l *LiveClass) EndsAt() time.Time {
	return l.StartsAt.Add(time.Duration(l.DurationMinutes) * time.Minute)
}

// Overlaps reports whether two half-open intervals [start, end) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ------------------------------------------------------------

type ScheduleLiveClassPayload struct {
	CourseID        string            `param:"id" validate:"required,uuid"`
	Title           string            `json:"title" validate:"required,min=3,max=200"`
	Provider        LiveClassProvider `json:"provider" validate:"required,oneof=zoom google_meet teams jitsi"`
	MeetingID       *string           `json:"meeting_id" validate:"omitempty,max=128"`
	JoinURL         string            `json:"join_url" validate:"required,https_url,max=2048"`
	Passcode        *string           `json:"passcode" validate:"omitempty,max=64"`
	StartsAt        time.Time         `json:"starts_at" validate:"required"`
	DurationMinutes int               `json:"duration_minutes" validate:"required,min=15,max=480"`
}

func (p *ScheduleLiveClassPayload) Validate() error {
	p.Title = strings.TrimSpace(p.Title)
	return validation.Struct(p)
}

type UpdateLiveClassPayload struct {
	ID              string             `param:"id" validate:"required,uuid"`
	Title           *string            `json:"title" validate:"omitempty,min=3,max=200"`
	Provider        *LiveClassProvider `json:"provider" validate:"omitempty,oneof=zoom google_meet teams jitsi"`
	MeetingID       *string            `json:"meeting_id" validate:"omitempty,max=128"`
	JoinURL         *string            `json:"join_url" validate:"omitempty,https_url,max=2048"`
	Passcode        *string            `json:"passcode" validate:"omitempty,max=64"`
	StartsAt        *time.Time         `json:"starts_at"`
	DurationMinutes *int               `json:"duration_minutes" validate:"omitempty,min=15,max=480"`
}

func (p *UpdateLiveClassPayload) Validate() error {
	if p.Title != nil {
		trimmed := strings.TrimSpace(*p.Title)
		p.Title = &trimmed
	}
	return validation.Struct(p)
}

// Apply merges the update into l.
func (p *UpdateLiveClassPayload) Apply(l *LiveClass) {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Provider != nil {
		l.Provider = *p.Provider
	}
	if p.MeetingID != nil {
		l.MeetingID = *p.MeetingID
	}
	if p.JoinURL != nil {
		l.JoinURL = *p.JoinURL
	}
	if p.Passcode != nil {
		l.Passcode = *p.Passcode
	}
	if p.StartsAt != nil {
		l.StartsAt = *p.StartsAt
	}
	if p.DurationMinutes != nil {
		l.DurationMinutes = *p.DurationMinutes
	}
}

type ListCourseLiveClassesQuery struct {
	CourseID         string `param:"id" validate:"required,uuid"`
	IncludePast      bool   `query:"include_past"`
	IncludeCancelled bool   `query:"include_cancelled"`
}

func (q *ListCourseLiveClassesQuery) Validate() error {
	return validation.Struct(q)
}
