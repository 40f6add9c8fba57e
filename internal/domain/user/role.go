package user

import (
	"fmt"
	"strings"
)

// Role is the RBAC role carried inside a JWT.
type Role string

const (
	RoleDriver Role = "DRIVER"
	RoleParent Role = "PARENT"
	RoleAdmin  Role = "ADMIN"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleDriver, RoleParent, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts a string into a Role, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}
