// Package model holds the domain entities stored in Postgres and the
// request payloads that create or change them.
package model

import (
	"time"

	"github.com/deppfellow/schoolhub/internal/lib/utils"
	"github.com/deppfellow/schoolhub/internal/validation"
)

// Base carries the columns shared by uuid-keyed tables.
type Base struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Pagination is embedded in list queries.
type Pagination struct {
	Page  int `query:"page" validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

// Normalized returns page and limit with defaults applied.
func (p Pagination) Normalized() (page, limit int) {
	page, limit = p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// Offset is the row offset of the requested page.
func (p Pagination) Offset() int {
	page, limit := p.Normalized()
	return (page - 1) * limit
}

// PaginatedResponse wraps one page of results.
type PaginatedResponse[T any] struct {
	Data       []T `json:"data"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPage builds the response for items on the page described by p.
func NewPage[T any](items []T, p Pagination, total int) *PaginatedResponse[T] {
	page, limit := p.Normalized()
	if items == nil {
		items = []T{}
	}
	return &PaginatedResponse[T]{
		Data:       items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: utils.TotalPages(total, limit),
	}
}

// PageTotal is reported to APM by the JSON response handler.
func (p *PaginatedResponse[T]) PageTotal() int {
	return p.Total
}

// IDParam is the payload of routes addressed only by :id.
type IDParam struct {
	ID string `param:"id" validate:"required,uuid"`
}

func (p *IDParam) Validate() error {
	return validation.Struct(p)
}

// Empty is the payload of routes without input.
type Empty struct{}

func (e *Empty) Validate() error {
	return nil
}

// Webhook acknowledgement statuses.
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
)

// WebhookAck is the body returned to webhook senders.
type WebhookAck struct {
	Status string `json:"status"`
}
