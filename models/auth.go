package models

// AuthContext carries the authenticated caller through every operation, so the
// core never reads identity or role from ambient request state.
type AuthContext struct {
	UserID string
	OrgID  string
	Role   string
}

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

func (a AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == "org:admin"
}
