package model

// Role is the platform-level role of a principal. Authentication itself is
// handled upstream; the caller supplies the authenticated identity and role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// NormalizeRole maps unknown role strings to the least privileged role.
func NormalizeRole(role string) Role {
	switch Role(role) {
	case RoleUser, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}

// Principal is the acting user for a request.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Admin reports whether the principal holds the administrator role.
func (p Principal) Admin() bool {
	return p.Role == RoleAdmin
}
