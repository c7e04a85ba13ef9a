package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeStore is an in-memory Store with the same constraint semantics as
// the SQL implementation: unique emails, unique organization names and
// the last-OWNER guard.
type fakeStore struct {
	orgs  map[string]*Organization
	users map[string]*User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orgs:  make(map[string]*Organization),
		users: make(map[string]*User),
	}
}

func (s *fakeStore) CreateOrganizationOwner(_ context.Context, org *Organization, owner *User) error {
	if _, err := s.FindOrganizationByName(context.Background(), org.Name); err == nil {
		return ErrConflict
	}
	for _, u := range s.users {
		if u.Email == owner.Email {
			return ErrConflict
		}
	}
	org.CreatedAt = time.Now().UTC()
	org.UpdatedAt = org.CreatedAt
	owner.CreatedAt = org.CreatedAt
	owner.UpdatedAt = org.CreatedAt
	s.orgs[org.ID] = org
	s.users[owner.ID] = owner
	return nil
}

func (s *fakeStore) FindOrganization(_ context.Context, id string) (*Organization, error) {
	org, ok := s.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return org, nil
}

func (s *fakeStore) FindOrganizationByName(_ context.Context, name string) (*Organization, error) {
	for _, org := range s.orgs {
		if org.Name == name {
			return org, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) CreateUser(_ context.Context, u *User) error {
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	if _, ok := s.orgs[u.OrganizationID]; !ok {
		return ErrNotFound
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
	return nil
}

func (s *fakeStore) FindUser(_ context.Context, id string) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) FindUserInOrganization(_ context.Context, orgID, id string) (*User, error) {
	u, ok := s.users[id]
	if !ok || u.OrganizationID != orgID {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) FindUserByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) ListUsersByOrganization(_ context.Context, orgID string) ([]*User, error) {
	var out []*User
	for _, u := range s.users {
		if u.OrganizationID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *fakeStore) SetRefreshTokenHash(_ context.Context, userID, hash string) error {
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.RefreshTokenHash = hash
	return nil
}

func (s *fakeStore) DeleteUser(_ context.Context, id string) error {
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	if u.Role == RoleOwner {
		owners := 0
		for _, other := range s.users {
			if other.OrganizationID == u.OrganizationID && other.Role == RoleOwner {
				owners++
			}
		}
		if owners <= 1 {
			return fmt.Errorf("%w: cannot remove the organization's last owner", ErrConflict)
		}
	}
	delete(s.users, id)
	return nil
}

// stubAuthz mirrors the engine's membership rules without importing it.
type stubAuthz struct{}

func (stubAuthz) CanAddUser(actor Actor, newRole Role) error {
	if !newRole.Valid() {
		return ErrInvalidInput
	}
	if !actor.Role.AtLeast(RoleAdmin) {
		return ErrForbidden
	}
	if newRole == RoleOwner && actor.Role != RoleOwner {
		return ErrForbidden
	}
	return nil
}

func (stubAuthz) CanRemoveUser(actor Actor, targetRole Role) error {
	if !actor.Role.AtLeast(RoleAdmin) {
		return ErrForbidden
	}
	if targetRole == RoleOwner && actor.Role != RoleOwner {
		return ErrForbidden
	}
	return nil
}

func (stubAuthz) CanReadUsers(Actor) error        { return nil }
func (stubAuthz) CanReadUser(Actor, string) error { return nil }

type recordedEntry struct {
	action   string
	entityID string
	orgID    string
}

type captureRecorder struct {
	entries []recordedEntry
}

func (c *captureRecorder) Record(_ context.Context, action, _, entityID, _, orgID string, _ map[string]string) {
	c.entries = append(c.entries, recordedEntry{action: action, entityID: entityID, orgID: orgID})
}

func newTestIdentity(t *testing.T) (*Identity, *fakeStore, *captureRecorder) {
	t.Helper()
	store := newFakeStore()
	recorder := &captureRecorder{}
	svc, err := NewIdentity(store, testTokenService(t), stubAuthz{}, recorder)
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	return svc, store, recorder
}

func registerTestOwner(t *testing.T, svc *Identity) (TokenPair, *User, *Organization) {
	t.Helper()
	pair, owner, org, err := svc.RegisterOwner(context.Background(), RegisterInput{
		Email:            "alice@example.com",
		Password:         "correct-horse",
		FirstName:        "Alice",
		LastName:         "Nguyen",
		OrganizationName: "Acme",
	})
	if err != nil {
		t.Fatalf("RegisterOwner: %v", err)
	}
	return pair, owner, org
}

func TestRegisterOwner(t *testing.T) {
	svc, store, recorder := newTestIdentity(t)
	pair, owner, org, err := svc.RegisterOwner(context.Background(), RegisterInput{
		Email:            "Alice@Example.com",
		Password:         "correct-horse",
		FirstName:        " Alice ",
		LastName:         "Nguyen",
		OrganizationName: "Acme",
	})
	if err != nil {
		t.Fatalf("RegisterOwner: %v", err)
	}
	if owner.Role != RoleOwner {
		t.Fatalf("first user role = %s, want OWNER", owner.Role)
	}
	if owner.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %s", owner.Email)
	}
	if owner.OrganizationID != org.ID {
		t.Fatalf("owner not bound to new organization")
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("token pair not issued")
	}
	stored := store.users[owner.ID]
	if stored.RefreshTokenHash == "" || !VerifyTokenHash(stored.RefreshTokenHash, pair.RefreshToken) {
		t.Fatalf("refresh token hash not persisted")
	}
	if len(recorder.entries) != 1 || recorder.entries[0].action != AuditRegisterOrganization {
		t.Fatalf("expected one %s audit entry, got %+v", AuditRegisterOrganization, recorder.entries)
	}
}

func TestRegisterOwnerConflicts(t *testing.T) {
	svc, _, _ := newTestIdentity(t)
	registerTestOwner(t, svc)

	_, _, _, err := svc.RegisterOwner(context.Background(), RegisterInput{
		Email:            "alice@example.com",
		Password:         "another-pass",
		FirstName:        "Other",
		LastName:         "Person",
		OrganizationName: "Different Org",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email: got %v, want ErrConflict", err)
	}

	_, _, _, err = svc.RegisterOwner(context.Background(), RegisterInput{
		Email:            "bob@example.com",
		Password:         "another-pass",
		FirstName:        "Bob",
		LastName:         "Lee",
		OrganizationName: "Acme",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate organization name: got %v, want ErrConflict", err)
	}
}

func TestRegisterOwnerValidation(t *testing.T) {
	svc, _, _ := newTestIdentity(t)
	cases := []RegisterInput{
		{Email: "", Password: "long-enough", FirstName: "A", LastName: "B", OrganizationName: "X"},
		{Email: "not-an-email", Password: "long-enough", FirstName: "A", LastName: "B", OrganizationName: "X"},
		{Email: "a@b.com", Password: "short", FirstName: "A", LastName: "B", OrganizationName: "X"},
		{Email: "a@b.com", Password: "long-enough", FirstName: "", LastName: "B", OrganizationName: "X"},
		{Email: "a@b.com", Password: "long-enough", FirstName: "A", LastName: "B", OrganizationName: "  "},
	}
	for i, in := range cases {
		if _, _, _, err := svc.RegisterOwner(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: got %v, want ErrInvalidInput", i, err)
		}
	}
}

func TestLoginUniformFailure(t *testing.T) {
	svc, _, _ := newTestIdentity(t)
	registerTestOwner(t, svc)

	_, _, errWrongPassword := svc.Login(context.Background(), "alice@example.com", "wrong-password")
	_, _, errUnknownEmail := svc.Login(context.Background(), "nobody@example.com", "wrong-password")
	if !errors.Is(errWrongPassword, ErrUnauthorized) || !errors.Is(errUnknownEmail, ErrUnauthorized) {
		t.Fatalf("login failures differ: %v vs %v", errWrongPassword, errUnknownEmail)
	}
	if errWrongPassword.Error() != errUnknownEmail.Error() {
		t.Fatalf("login failure messages leak which part failed: %q vs %q",
			errWrongPassword, errUnknownEmail)
	}

	pair, user, err := svc.Login(context.Background(), " Alice@Example.COM ", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Email != "alice@example.com" || pair.AccessToken == "" {
		t.Fatalf("login did not normalize email or issue tokens")
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, _, _ := newTestIdentity(t)
	pair, _, _ := registerTestOwner(t, svc)

	next, _, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	// The superseded token must be dead.
	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("superseded refresh token accepted: %v", err)
	}
	// The fresh one still works.
	if _, _, err := svc.Refresh(context.Background(), next.RefreshToken); err != nil {
		t.Fatalf("current refresh token rejected: %v", err)
	}
	// An access token is never a refresh token.
	if _, _, err := svc.Refresh(context.Background(), next.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("access token accepted for refresh: %v", err)
	}
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	svc, store, _ := newTestIdentity(t)
	pair, owner, _ := registerTestOwner(t, svc)

	store.users[owner.ID].Role = RoleAdmin

	next, user, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if user.Role != RoleAdmin {
		t.Fatalf("refresh returned stale role %s", user.Role)
	}
	claims, err := svc.tokens.ValidateAccess(next.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.Role != RoleAdmin {
		t.Fatalf("new access token carries stale role %s", claims.Role)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, store, _ := newTestIdentity(t)
	pair, owner, _ := registerTestOwner(t, svc)

	user, err := svc.Authenticate(context.Background(), pair.AccessToken)
	if err != nil || user.ID != owner.ID {
		t.Fatalf("Authenticate: %v, user=%v", err, user)
	}

	if _, err := svc.Authenticate(context.Background(), pair.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("refresh token authenticated a request: %v", err)
	}

	delete(store.users, owner.ID)
	if _, err := svc.Authenticate(context.Background(), pair.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("deleted user still authenticates: %v", err)
	}
}

func TestAddUser(t *testing.T) {
	svc, store, recorder := newTestIdentity(t)
	_, owner, org := registerTestOwner(t, svc)

	user, tempPassword, err := svc.AddUser(context.Background(), owner.Actor(), AddUserInput{
		Email:     "bob@example.com",
		FirstName: "Bob",
		LastName:  "Lee",
		Role:      RoleMember,
	})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if user.OrganizationID != org.ID {
		t.Fatalf("new user in wrong organization")
	}
	if tempPassword == "" || user.PasswordHash == tempPassword {
		t.Fatalf("plaintext credential handling broken")
	}
	if err := VerifyPassword(user.PasswordHash, tempPassword); err != nil {
		t.Fatalf("temp password does not verify against stored hash: %v", err)
	}
	if len(recorder.entries) != 2 || recorder.entries[1].action != AuditAddUser {
		t.Fatalf("expected %s audit entry, got %+v", AuditAddUser, recorder.entries)
	}

	// Duplicate email is a conflict even via AddUser.
	if _, _, err := svc.AddUser(context.Background(), owner.Actor(), AddUserInput{
		Email: "bob@example.com", FirstName: "Bob", LastName: "Lee", Role: RoleMember,
	}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email: got %v, want ErrConflict", err)
	}

	// A MEMBER never adds users; an ADMIN never creates an OWNER.
	member := store.users[user.ID]
	if _, _, err := svc.AddUser(context.Background(), member.Actor(), AddUserInput{
		Email: "carol@example.com", FirstName: "Carol", LastName: "Ng", Role: RoleMember,
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("member added a user: %v", err)
	}
	admin := &User{ID: "admin-1", OrganizationID: org.ID, Role: RoleAdmin}
	if _, _, err := svc.AddUser(context.Background(), admin.Actor(), AddUserInput{
		Email: "eve@example.com", FirstName: "Eve", LastName: "Adams", Role: RoleOwner,
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin created an owner: %v", err)
	}
}

func TestRemoveUser(t *testing.T) {
	svc, _, recorder := newTestIdentity(t)
	_, owner, _ := registerTestOwner(t, svc)

	member, _, err := svc.AddUser(context.Background(), owner.Actor(), AddUserInput{
		Email: "bob@example.com", FirstName: "Bob", LastName: "Lee", Role: RoleMember,
	})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	if err := svc.RemoveUser(context.Background(), owner.Actor(), member.ID); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}
	last := recorder.entries[len(recorder.entries)-1]
	if last.action != AuditRemoveUser || last.entityID != member.ID {
		t.Fatalf("missing %s audit entry: %+v", AuditRemoveUser, last)
	}

	// The last OWNER of an organization cannot be removed.
	if err := svc.RemoveUser(context.Background(), owner.Actor(), owner.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("last owner removed: %v", err)
	}

	// Unknown and cross-tenant ids are indistinguishable.
	if err := svc.RemoveUser(context.Background(), owner.Actor(), "no-such-user"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: got %v, want ErrNotFound", err)
	}
}

func TestGetUserCrossTenant(t *testing.T) {
	svc, store, _ := newTestIdentity(t)
	_, owner, _ := registerTestOwner(t, svc)

	otherOrg := &Organization{ID: "org-other", Name: "Other"}
	store.orgs[otherOrg.ID] = otherOrg
	stranger := &User{ID: "stranger-1", OrganizationID: otherOrg.ID, Email: "x@other.com", Role: RoleOwner}
	store.users[stranger.ID] = stranger

	if _, err := svc.GetUser(context.Background(), owner.Actor(), stranger.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant lookup: got %v, want ErrNotFound", err)
	}
}
