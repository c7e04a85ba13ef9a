package authz

import "fmt"

// What a MEMBER may see and delete varies between deployments. Rather
// than hard-coding one rule, both are named policy variants selected at
// process start.

// MemberVisibility selects which tasks a MEMBER sees.
type MemberVisibility string

const (
	// MemberSeesInvolved limits a MEMBER to tasks they created or are
	// assigned to. This is the default.
	MemberSeesInvolved MemberVisibility = "involved"
	// MemberSeesOrganization lets a MEMBER see every task in their
	// organization.
	MemberSeesOrganization MemberVisibility = "organization"
)

// MemberDelete selects whether a MEMBER may delete tasks.
type MemberDelete string

const (
	// MemberDeletesOwn lets a MEMBER delete tasks they created. This is
	// the default.
	MemberDeletesOwn MemberDelete = "own"
	// MemberDeleteForbidden denies all deletions by MEMBERs.
	MemberDeleteForbidden MemberDelete = "forbidden"
)

// Policy bundles the MEMBER variants. OWNER/ADMIN behavior is fixed by
// the decision table and not configurable.
type Policy struct {
	MemberVisibility MemberVisibility
	MemberDelete     MemberDelete
}

// DefaultPolicy selects involvement visibility and delete-own, the
// strictest combination for MEMBERs.
func DefaultPolicy() Policy {
	return Policy{
		MemberVisibility: MemberSeesInvolved,
		MemberDelete:     MemberDeletesOwn,
	}
}

// Validate rejects unknown variants so a typo in configuration cannot
// silently widen visibility.
func (p Policy) Validate() error {
	switch p.MemberVisibility {
	case MemberSeesInvolved, MemberSeesOrganization:
	default:
		return fmt.Errorf("authz: unknown member visibility %q", p.MemberVisibility)
	}
	switch p.MemberDelete {
	case MemberDeletesOwn, MemberDeleteForbidden:
	default:
		return fmt.Errorf("authz: unknown member delete policy %q", p.MemberDelete)
	}
	return nil
}

// ParseMemberVisibility converts configuration input into a variant.
func ParseMemberVisibility(s string) (MemberVisibility, error) {
	switch MemberVisibility(s) {
	case MemberSeesInvolved, MemberSeesOrganization:
		return MemberVisibility(s), nil
	case "":
		return MemberSeesInvolved, nil
	default:
		return "", fmt.Errorf("authz: unknown member visibility %q", s)
	}
}

// ParseMemberDelete converts configuration input into a variant.
func ParseMemberDelete(s string) (MemberDelete, error) {
	switch MemberDelete(s) {
	case MemberDeletesOwn, MemberDeleteForbidden:
		return MemberDelete(s), nil
	case "":
		return MemberDeletesOwn, nil
	default:
		return "", fmt.Errorf("authz: unknown member delete policy %q", s)
	}
}
