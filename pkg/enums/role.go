package enums

import "slices"

// Role is the caller role carried in access token claims.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
	RoleGuest Role = "guest"
)

func (r Role) IsValid() bool { return slices.Contains([]Role{RoleAdmin, RoleOwner, RoleGuest}, r) }
