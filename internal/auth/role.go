package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of privilege levels inside an organization.
// OWNER > ADMIN > MEMBER; privilege checks are order comparisons on
// Level, never equality chains, so an unknown role can't slip past a
// check by not matching any branch.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Level returns the position of the role in the privilege order.
// Unknown roles rank below every valid role.
func (r Role) Level() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the three defined roles.
func (r Role) Valid() bool { return r.Level() > 0 }

// AtLeast reports whether r holds at least the privilege of other.
// An invalid role never satisfies any requirement.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && other.Valid() && r.Level() >= other.Level()
}

// ParseRole converts external input into a Role. Unknown values are
// rejected rather than defaulted.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleOwner:
		return RoleOwner, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleMember:
		return RoleMember, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}
