package authz

import (
	"errors"
	"testing"

	"taskhive.org/internal/auth"
)

func newTestEngine(t *testing.T, policy Policy) *Engine {
	t.Helper()
	e, err := NewEngine(policy)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func actor(role auth.Role) auth.Actor {
	return auth.Actor{UserID: "user-1", OrganizationID: "org-1", Role: role}
}

func strptr(s string) *string { return &s }

func TestCanCreateTask(t *testing.T) {
	e := newTestEngine(t, DefaultPolicy())

	for _, role := range []auth.Role{auth.RoleOwner, auth.RoleAdmin} {
		if err := e.CanCreateTask(actor(role), strptr("someone-else")); err != nil {
			t.Fatalf("%s assigning to others: %v", role, err)
		}
	}
	if err := e.CanCreateTask(actor(auth.RoleMember), nil); err != nil {
		t.Fatalf("member creating unassigned task: %v", err)
	}
	if err := e.CanCreateTask(actor(auth.RoleMember), strptr("user-1")); err != nil {
		t.Fatalf("member self-assigning: %v", err)
	}
	if err := e.CanCreateTask(actor(auth.RoleMember), strptr("someone-else")); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("member assigned to someone else: %v", err)
	}
	if err := e.CanCreateTask(auth.Actor{}, nil); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("zero actor allowed: %v", err)
	}
}

func TestTaskFilter(t *testing.T) {
	e := newTestEngine(t, DefaultPolicy())
	if f := e.TaskFilter(actor(auth.RoleAdmin)); f.InvolvedUserID != "" {
		t.Fatalf("admin filter should be unrestricted: %+v", f)
	}
	if f := e.TaskFilter(actor(auth.RoleMember)); f.InvolvedUserID != "user-1" {
		t.Fatalf("member filter should restrict to involvement: %+v", f)
	}

	wide := newTestEngine(t, Policy{MemberVisibility: MemberSeesOrganization, MemberDelete: MemberDeletesOwn})
	if f := wide.TaskFilter(actor(auth.RoleMember)); f.InvolvedUserID != "" {
		t.Fatalf("organization visibility should not restrict members: %+v", f)
	}
}

func TestCanReadTask(t *testing.T) {
	e := newTestEngine(t, DefaultPolicy())

	ownTask := TaskTarget{OrganizationID: "org-1", CreatedByID: "user-1"}
	assignedTask := TaskTarget{OrganizationID: "org-1", CreatedByID: "other", AssigneeID: strptr("user-1")}
	unrelatedTask := TaskTarget{OrganizationID: "org-1", CreatedByID: "other"}
	foreignTask := TaskTarget{OrganizationID: "org-2", CreatedByID: "user-1"}

	if err := e.CanReadTask(actor(auth.RoleMember), ownTask); err != nil {
		t.Fatalf("member reading own task: %v", err)
	}
	if err := e.CanReadTask(actor(auth.RoleMember), assignedTask); err != nil {
		t.Fatalf("member reading assigned task: %v", err)
	}
	if err := e.CanReadTask(actor(auth.RoleMember), unrelatedTask); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("member read an unrelated task: %v", err)
	}
	if err := e.CanReadTask(actor(auth.RoleAdmin), unrelatedTask); err != nil {
		t.Fatalf("admin reading any org task: %v", err)
	}

	// Tenancy always wins, whatever the role.
	for _, role := range []auth.Role{auth.RoleOwner, auth.RoleAdmin, auth.RoleMember} {
		if err := e.CanReadTask(actor(role), foreignTask); !errors.Is(err, auth.ErrForbidden) {
			t.Fatalf("%s read a foreign-tenant task: %v", role, err)
		}
	}

	wide := newTestEngine(t, Policy{MemberVisibility: MemberSeesOrganization, MemberDelete: MemberDeletesOwn})
	if err := wide.CanReadTask(actor(auth.RoleMember), unrelatedTask); err != nil {
		t.Fatalf("organization visibility should allow member reads: %v", err)
	}
	if err := wide.CanReadTask(actor(auth.RoleMember), foreignTask); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("organization visibility crossed tenants: %v", err)
	}
}

func TestCanDeleteTask(t *testing.T) {
	e := newTestEngine(t, DefaultPolicy())

	ownTask := TaskTarget{OrganizationID: "org-1", CreatedByID: "user-1"}
	othersTask := TaskTarget{OrganizationID: "org-1", CreatedByID: "other", AssigneeID: strptr("user-1")}

	if err := e.CanDeleteTask(actor(auth.RoleMember), ownTask); err != nil {
		t.Fatalf("member deleting own task: %v", err)
	}
	// Assignment does not grant deletion.
	if err := e.CanDeleteTask(actor(auth.RoleMember), othersTask); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("member deleted a task they only hold: %v", err)
	}
	if err := e.CanDeleteTask(actor(auth.RoleAdmin), othersTask); err != nil {
		t.Fatalf("admin deleting org task: %v", err)
	}

	strict := newTestEngine(t, Policy{MemberVisibility: MemberSeesInvolved, MemberDelete: MemberDeleteForbidden})
	if err := strict.CanDeleteTask(actor(auth.RoleMember), ownTask); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("forbidden policy let a member delete: %v", err)
	}
	if err := strict.CanDeleteTask(actor(auth.RoleOwner), othersTask); err != nil {
		t.Fatalf("forbidden policy must not affect owners: %v", err)
	}
}

func TestMembershipRules(t *testing.T) {
	e := newTestEngine(t, DefaultPolicy())

	cases := []struct {
		actorRole auth.Role
		target    auth.Role
		allowed   bool
	}{
		{auth.RoleOwner, auth.RoleOwner, true},
		{auth.RoleOwner, auth.RoleAdmin, true},
		{auth.RoleOwner, auth.RoleMember, true},
		{auth.RoleAdmin, auth.RoleOwner, false},
		{auth.RoleAdmin, auth.RoleAdmin, true},
		{auth.RoleAdmin, auth.RoleMember, true},
		{auth.RoleMember, auth.RoleMember, false},
		{auth.RoleMember, auth.RoleOwner, false},
	}
	for _, tc := range cases {
		addErr := e.CanAddUser(actor(tc.actorRole), tc.target)
		removeErr := e.CanRemoveUser(actor(tc.actorRole), tc.target)
		if tc.allowed && (addErr != nil || removeErr != nil) {
			t.Fatalf("%s on %s: add=%v remove=%v, want allowed", tc.actorRole, tc.target, addErr, removeErr)
		}
		if !tc.allowed && (!errors.Is(addErr, auth.ErrForbidden) || !errors.Is(removeErr, auth.ErrForbidden)) {
			t.Fatalf("%s on %s: add=%v remove=%v, want ErrForbidden", tc.actorRole, tc.target, addErr, removeErr)
		}
	}

	if err := e.CanAddUser(actor(auth.RoleOwner), auth.Role("SUPERUSER")); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("unknown role accepted: %v", err)
	}
}

func TestCanReadAuditLog(t *testing.T) {
	e := newTestEngine(t, DefaultPolicy())
	if err := e.CanReadAuditLog(actor(auth.RoleOwner), "org-1"); err != nil {
		t.Fatalf("owner reading audit log: %v", err)
	}
	if err := e.CanReadAuditLog(actor(auth.RoleAdmin), "org-1"); err != nil {
		t.Fatalf("admin reading audit log: %v", err)
	}
	if err := e.CanReadAuditLog(actor(auth.RoleMember), "org-1"); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("member read the audit log: %v", err)
	}
	if err := e.CanReadAuditLog(actor(auth.RoleOwner), "org-2"); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("owner read a foreign audit log: %v", err)
	}
}

func TestPolicyValidation(t *testing.T) {
	if _, err := NewEngine(Policy{MemberVisibility: "everything", MemberDelete: MemberDeletesOwn}); err == nil {
		t.Fatalf("unknown visibility accepted")
	}
	if _, err := NewEngine(Policy{}); err == nil {
		t.Fatalf("zero policy accepted")
	}
	if _, err := NewEngine(DefaultPolicy()); err != nil {
		t.Fatalf("default policy rejected: %v", err)
	}

	if v, err := ParseMemberVisibility(""); err != nil || v != MemberSeesInvolved {
		t.Fatalf("empty visibility should default: %v %v", v, err)
	}
	if _, err := ParseMemberVisibility("all"); err == nil {
		t.Fatalf("unknown visibility parsed")
	}
	if d, err := ParseMemberDelete("forbidden"); err != nil || d != MemberDeleteForbidden {
		t.Fatalf("forbidden variant: %v %v", d, err)
	}
}
