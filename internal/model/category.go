package model

import (
	"regexp"
	"strings"

	"github.com/deppfellow/schoolhub/internal/lib/utils"
	"github.com/deppfellow/schoolhub/internal/validation"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

type Category struct {
	Base
	TenantID    string `json:"-" db:"tenant_id"`
	Name        string `json:"name" db:"name"`
	Slug        string `json:"slug" db:"slug"`
	Description string `json:"description" db:"description"`
}

// ------------------------------------------------------------

type CreateCategoryPayload struct {
	Name        string  `json:"name" validate:"required,min=2,max=64"`
	Slug        *string `json:"slug" validate:"omitempty,max=64"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

func (p *CreateCategoryPayload) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if err := validation.Struct(p); err != nil {
		return err
	}
	if err := validateSlug(p.Slug); err != nil {
		return err
	}

	var v validation.CustomValidationErrors
	if p.ResolvedSlug() == "" {
		v.Add("slug", "could not be derived from the name, provide one")
	}
	return v.OrNil()
}

// ResolvedSlug is the given slug, or one derived from the name.
func (p *CreateCategoryPayload) ResolvedSlug() string {
	if p.Slug != nil && *p.Slug != "" {
		return *p.Slug
	}
	return utils.Slugify(p.Name)
}

type UpdateCategoryPayload struct {
	ID          string  `param:"id" validate:"required,uuid"`
	Name        *string `json:"name" validate:"omitempty,min=2,max=64"`
	Slug        *string `json:"slug" validate:"omitempty,max=64"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

func (p *UpdateCategoryPayload) Validate() error {
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		p.Name = &trimmed
	}
	if err := validation.Struct(p); err != nil {
		return err
	}
	return validateSlug(p.Slug)
}

func validateSlug(slug *string) error {
	var v validation.CustomValidationErrors
	if slug != nil && *slug != "" && !slugRegex.MatchString(*slug) {
		v.Add("slug", "must contain only lowercase letters, digits and single dashes")
	}
	return v.OrNil()
}
