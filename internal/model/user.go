package model

import (
	"time"

	"github.com/deppfellow/schoolhub/internal/validation"
)

type UserRole string

const (
	UserRoleStudent    UserRole = "student"
	UserRoleInstructor UserRole = "instructor"
	UserRoleAdmin      UserRole = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// User is a member of a school. The id is the Clerk user id.
type User struct {
	ID        string     `json:"id" db:"id"`
	TenantID  string     `json:"-" db:"tenant_id"`
	Email     string     `json:"email" db:"email"`
	FullName  string     `json:"full_name" db:"full_name"`
	Role      UserRole   `json:"role" db:"role"`
	Status    UserStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// FirstName is used to greet the user in emails.
func (u *User) FirstName() string {
	for i, r := range u.FullName {
		if r == ' ' {
			return u.FullName[:i]
		}
	}
	return u.FullName
}

// ------------------------------------------------------------

type UpsertProfilePayload struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	FullName string `json:"full_name" validate:"required,min=2,max=120"`
}

func (p *UpsertProfilePayload) Validate() error {
	return validation.Struct(p)
}

// ------------------------------------------------------------

type BulkAction string

const (
	BulkActivate BulkAction = "activate"
	BulkSuspend  BulkAction = "suspend"
	BulkDelete   BulkAction = "delete"
	BulkSetRole  BulkAction = "set_role"
)

type BulkUsersPayload struct {
	Action  BulkAction `json:"action" validate:"required,oneof=activate suspend delete set_role"`
	UserIDs []string   `json:"user_ids" validate:"required,min=1,max=100,dive,required,max=64"`
	Role    *UserRole  `json:"role" validate:"omitempty,oneof=student instructor admin"`
}

func (p *BulkUsersPayload) Validate() error {
	if err := validation.Struct(p); err != nil {
		return err
	}

	var v validation.CustomValidationErrors
	if p.Action == BulkSetRole && p.Role == nil {
		v.Add("role", "is required for set_role")
	}
	if p.Action != BulkSetRole && p.Role != nil {
		v.Add("role", "is only allowed for set_role")
	}
	return v.OrNil()
}

// UniqueUserIDs drops repeated ids, keeping the first occurrence.
func (p *BulkUsersPayload) UniqueUserIDs() []string {
	seen := make(map[string]struct{}, len(p.UserIDs))
	out := make([]string, 0, len(p.UserIDs))
	for _, id := range p.UserIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type BulkUsersResult struct {
	Requested int `json:"requested"`
	Affected  int `json:"affected"`
}

// ------------------------------------------------------------

type ListUsersQuery struct {
	Pagination
	Role   string `query:"role" validate:"omitempty,oneof=student instructor admin"`
	Status string `query:"status" validate:"omitempty,oneof=active suspended"`
	Search string `query:"search" validate:"omitempty,max=100"`
}

func (q *ListUsersQuery) Validate() error {
	return validation.Struct(q)
}
