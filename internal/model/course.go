package model

import (
	"strings"

	"github.com/deppfellow/schoolhub/internal/lib/pricing"
	"github.com/deppfellow/schoolhub/internal/validation"
)

type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
	CourseStatusArchived  CourseStatus = "archived"
)

var courseTransitions = map[CourseStatus][]CourseStatus{
	CourseStatusDraft:     {CourseStatusPublished},
	CourseStatusPublished: {CourseStatusArchived},
	CourseStatusArchived:  {CourseStatusDraft},
}

// CanTransitionTo reports whether a course may move from s to next.
func (s CourseStatus) CanTransitionTo(next CourseStatus) bool {
	for _, allowed := range courseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Course struct {
	Base
	TenantID     string        `json:"-" db:"tenant_id"`
	CategoryID   string        `json:"category_id" db:"category_id"`
	Title        string        `json:"title" db:"title"`
	Description  string        `json:"description" db:"description"`
	Status       CourseStatus  `json:"status" db:"status"`
	Pricing      pricing.Model `json:"pricing" db:"pricing"`
	InstructorID string        `json:"instructor_id" db:"instructor_id"`
}

// ------------------------------------------------------------

type CreateCoursePayload struct {
	Title        string         `json:"title" validate:"required,min=3,max=200"`
	Description  *string        `json:"description" validate:"omitempty,max=20000"`
	CategoryID   string         `json:"category_id" validate:"required,uuid"`
	Pricing      *pricing.Model `json:"pricing"`
	InstructorID *string        `json:"instructor_id" validate:"omitempty,max=64"`
}

func (p *CreateCoursePayload) Validate() error {
	p.Title = strings.TrimSpace(p.Title)
	if err := validation.Struct(p); err != nil {
		return err
	}
	if p.Pricing != nil {
		return p.Pricing.Validate("pricing")
	}
	return nil
}

// PricingOrFree returns the normalized pricing, free when none was sent.
func (p *CreateCoursePayload) PricingOrFree() pricing.Model {
	if p.Pricing == nil {
		return pricing.Free()
	}
	return p.Pricing.Normalize()
}

type UpdateCoursePayload struct {
	ID           string         `param:"id" validate:"required,uuid"`
	Title        *string        `json:"title" validate:"omitempty,min=3,max=200"`
	Description  *string        `json:"description" validate:"omitempty,max=20000"`
	CategoryID   *string        `json:"category_id" validate:"omitempty,uuid"`
	Pricing      *pricing.Model `json:"pricing"`
	InstructorID *string        `json:"instructor_id" validate:"omitempty,max=64"`
}

func (p *UpdateCoursePayload) Validate() error {
	if p.Title != nil {
		trimmed := strings.TrimSpace(*p.Title)
		p.Title = &trimmed
	}
	if err := validation.Struct(p); err != nil {
		return err
	}
	if p.Pricing != nil {
		return p.Pricing.Validate("pricing")
	}
	return nil
}

type ChangeCourseStatusPayload struct {
	ID     string       `param:"id" validate:"required,uuid"`
	Status CourseStatus `json:"status" validate:"required,oneof=draft published archived"`
}

func (p *ChangeCourseStatusPayload) Validate() error {
	return validation.Struct(p)
}

type ListCoursesQuery struct {
	Pagination
	CategoryID string `query:"category_id" validate:"omitempty,uuid"`
	Search     string `query:"search" validate:"omitempty,max=100"`
	Status     string `query:"status" validate:"omitempty,oneof=draft published archived"`
}

func (q *ListCoursesQuery) Validate() error {
	return validation.Struct(q)
}
