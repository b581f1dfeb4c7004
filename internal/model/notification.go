package model

import (
	"time"

	"github.com/deppfellow/schoolhub/internal/validation"
)

type NotificationKind string

const (
	NotificationEnrollment NotificationKind = "enrollment"
	NotificationPayment    NotificationKind = "payment"
	NotificationLiveClass  NotificationKind = "live_class"
	NotificationTicket     NotificationKind = "ticket"
	NotificationSystem     NotificationKind = "system"
)

// Notification is an in-app message shown in the student's inbox.
type Notification struct {
	ID        string           `json:"id" db:"id"`
	TenantID  string           `json:"-" db:"tenant_id"`
	UserID    string           `json:"user_id" db:"user_id"`
	Kind      NotificationKind `json:"kind" db:"kind"`
	Title     string           `json:"title" db:"title"`
	Body      string           `json:"body" db:"body"`
	Link      string           `json:"link" db:"link"`
	ReadAt    *time.Time       `json:"read_at" db:"read_at"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// NewNotification is the internal input of the notification service.
type NewNotification struct {
	UserID string
	Kind   NotificationKind
	Title  string
	Body   string
	Link   string
}

// ------------------------------------------------------------

type ListNotificationsQuery struct {
	Pagination
	UnreadOnly bool `query:"unread_only"`
}

func (q *ListNotificationsQuery) Validate() error {
	return validation.Struct(q)
}

type UnreadCount struct {
	Count int `json:"count"`
}

type MarkAllReadResult struct {
	Updated int `json:"updated"`
}
