package models

// Actor is the authenticated caller, resolved once per request and passed into every core operation.
type Actor struct {
	UserID string
	Role   UserRole
	Name   string
	Email  string
	IP     string
}

// IsAdmin reports whether the actor is the global administrator.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
