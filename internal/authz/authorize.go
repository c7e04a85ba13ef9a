// Package authz is the authorization engine: pure, stateless decision
// logic over (actor, action, target). It owns the role decision table and
// the visibility filters; services call it before touching storage and
// the transport layer never embeds checks of its own.
package authz

import (
	"fmt"

	"taskhive.org/internal/auth"
)

// Action names every operation the engine decides on.
type Action string

const (
	ActionCreateTask   Action = "task:create"
	ActionReadTask     Action = "task:read"
	ActionListTasks    Action = "task:list"
	ActionUpdateTask   Action = "task:update"
	ActionDeleteTask   Action = "task:delete"
	ActionListUsers    Action = "user:list"
	ActionReadUser     Action = "user:read"
	ActionAddUser      Action = "user:add"
	ActionRemoveUser   Action = "user:remove"
	ActionReadAuditLog Action = "audit:read"
)

// TaskTarget is the engine's view of a task: just enough to decide
// tenancy and involvement.
type TaskTarget struct {
	OrganizationID string
	CreatedByID    string
	AssigneeID     *string
}

// Filter is the visibility predicate the engine derives for list
// operations. A zero InvolvedUserID means every task in the organization;
// otherwise only tasks where that user is creator or assignee.
type Filter struct {
	InvolvedUserID string
}

// Engine evaluates the decision table under a fixed policy. It keeps no
// state beyond the policy chosen at construction.
type Engine struct {
	policy Policy
}

// NewEngine validates the policy and constructs the engine.
func NewEngine(policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: policy}, nil
}

// Policy returns the policy the engine was built with.
func (e *Engine) Policy() Policy { return e.policy }

// CanCreateTask decides task creation. Any valid member of an
// organization may create tasks; a MEMBER may only assign to themselves
// or leave the task unassigned.
func (e *Engine) CanCreateTask(actor auth.Actor, assigneeID *string) error {
	if err := validActor(actor); err != nil {
		return err
	}
	if actor.Role.AtLeast(auth.RoleAdmin) {
		return nil
	}
	if assigneeID != nil && *assigneeID != actor.UserID {
		return fmt.Errorf("%w: members may only assign tasks to themselves", auth.ErrForbidden)
	}
	return nil
}

// TaskFilter derives the list-visibility filter for the actor. Rows
// outside the filter are never materialized, so a MEMBER cannot learn of
// tasks they are not involved in even by probing list parameters.
func (e *Engine) TaskFilter(actor auth.Actor) Filter {
	if actor.Role.AtLeast(auth.RoleAdmin) {
		return Filter{}
	}
	if e.policy.MemberVisibility == MemberSeesOrganization {
		return Filter{}
	}
	return Filter{InvolvedUserID: actor.UserID}
}

// CanReadTask decides direct task reads. The tenancy check runs even when
// the caller already filtered by organization: a stale or forged
// reference must not leak across tenants.
func (e *Engine) CanReadTask(actor auth.Actor, t TaskTarget) error {
	if err := e.sameTenant(actor, t.OrganizationID); err != nil {
		return err
	}
	if actor.Role.AtLeast(auth.RoleAdmin) {
		return nil
	}
	if e.policy.MemberVisibility == MemberSeesOrganization {
		return nil
	}
	if involved(actor, t) {
		return nil
	}
	return fmt.Errorf("%w: task is outside your visibility", auth.ErrForbidden)
}

// CanUpdateTask decides task mutation; same involvement rule as reads.
func (e *Engine) CanUpdateTask(actor auth.Actor, t TaskTarget) error {
	return e.CanReadTask(actor, t)
}

// CanDeleteTask decides task deletion. ADMIN and above may delete any
// task in their organization; a MEMBER's ability is a named policy
// variant (delete-own or forbidden).
func (e *Engine) CanDeleteTask(actor auth.Actor, t TaskTarget) error {
	if err := e.sameTenant(actor, t.OrganizationID); err != nil {
		return err
	}
	if actor.Role.AtLeast(auth.RoleAdmin) {
		return nil
	}
	if e.policy.MemberDelete == MemberDeleteForbidden {
		return fmt.Errorf("%w: members may not delete tasks", auth.ErrForbidden)
	}
	if t.CreatedByID != actor.UserID {
		return fmt.Errorf("%w: members may only delete tasks they created", auth.ErrForbidden)
	}
	return nil
}

// CanAddUser decides membership creation. MEMBER never adds users;
// creating an OWNER requires an OWNER actor.
func (e *Engine) CanAddUser(actor auth.Actor, newRole auth.Role) error {
	if err := validActor(actor); err != nil {
		return err
	}
	if !newRole.Valid() {
		return fmt.Errorf("%w: unknown role", auth.ErrInvalidInput)
	}
	if !actor.Role.AtLeast(auth.RoleAdmin) {
		return fmt.Errorf("%w: only owners and admins may add users", auth.ErrForbidden)
	}
	if newRole == auth.RoleOwner && actor.Role != auth.RoleOwner {
		return fmt.Errorf("%w: only owners may create owners", auth.ErrForbidden)
	}
	return nil
}

// CanRemoveUser mirrors CanAddUser for deletions: ADMIN and above, and
// removing an OWNER requires an OWNER actor.
func (e *Engine) CanRemoveUser(actor auth.Actor, targetRole auth.Role) error {
	if err := validActor(actor); err != nil {
		return err
	}
	if !actor.Role.AtLeast(auth.RoleAdmin) {
		return fmt.Errorf("%w: only owners and admins may remove users", auth.ErrForbidden)
	}
	if targetRole == auth.RoleOwner && actor.Role != auth.RoleOwner {
		return fmt.Errorf("%w: only owners may remove owners", auth.ErrForbidden)
	}
	return nil
}

// CanReadUsers allows every role to read its own organization's
// membership directory.
func (e *Engine) CanReadUsers(actor auth.Actor) error {
	return validActor(actor)
}

// CanReadUser re-checks tenancy on a fetched user record.
func (e *Engine) CanReadUser(actor auth.Actor, targetOrgID string) error {
	return e.sameTenant(actor, targetOrgID)
}

// CanReadAuditLog restricts the audit trail to OWNER and ADMIN, scoped to
// their own organization.
func (e *Engine) CanReadAuditLog(actor auth.Actor, orgID string) error {
	if err := e.sameTenant(actor, orgID); err != nil {
		return err
	}
	if !actor.Role.AtLeast(auth.RoleAdmin) {
		return fmt.Errorf("%w: audit log is restricted to owners and admins", auth.ErrForbidden)
	}
	return nil
}

func (e *Engine) sameTenant(actor auth.Actor, orgID string) error {
	if err := validActor(actor); err != nil {
		return err
	}
	if orgID == "" || orgID != actor.OrganizationID {
		return fmt.Errorf("%w: resource belongs to another organization", auth.ErrForbidden)
	}
	return nil
}

func validActor(actor auth.Actor) error {
	if actor.UserID == "" || actor.OrganizationID == "" || !actor.Role.Valid() {
		return fmt.Errorf("%w: incomplete actor", auth.ErrForbidden)
	}
	return nil
}

func involved(actor auth.Actor, t TaskTarget) bool {
	if t.CreatedByID == actor.UserID {
		return true
	}
	return t.AssigneeID != nil && *t.AssigneeID == actor.UserID
}
