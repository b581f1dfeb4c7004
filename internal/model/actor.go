package model

// Clerk organization roles.
const (
	OrgRoleAdmin      = "org:admin"
	OrgRoleInstructor = "org:instructor"
	OrgRoleMember     = "org:member"
)

// Actor is the authenticated caller of a request: a Clerk user acting
// inside one organization (the tenant).
type Actor struct {
	TenantID string
	UserID   string
	Role     string
}

func (a Actor) IsAdmin() bool {
	return a.Role == OrgRoleAdmin
}

// IsStaff covers the roles that teach and answer support tickets.
func (a Actor) IsStaff() bool {
	return a.Role == OrgRoleAdmin || a.Role == OrgRoleInstructor
}
