package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskhive.org/internal/ids"
)

// Audit action tags emitted by identity operations.
const (
	AuditRegisterOrganization = "REGISTER_ORGANIZATION"
	AuditAddUser              = "ADD_USER"
	AuditRemoveUser           = "REMOVE_USER"
)

const minPasswordLength = 8

// IdentityAuthorizer is the slice of the authorization engine the
// identity service consults. The policy object is passed in explicitly;
// no operation embeds its own role checks.
type IdentityAuthorizer interface {
	CanAddUser(actor Actor, newRole Role) error
	CanRemoveUser(actor Actor, targetRole Role) error
	CanReadUsers(actor Actor) error
	CanReadUser(actor Actor, targetOrgID string) error
}

// AuditRecorder receives privileged-action records. Implementations are
// fire-and-forget; a failed append never fails the primary operation.
type AuditRecorder interface {
	Record(ctx context.Context, action, entityType, entityID, actorID, organizationID string, metadata map[string]string)
}

// Identity implements credential verification, registration, token
// refresh and organization membership management.
type Identity struct {
	store     Store
	tokens    *TokenService
	authorize IdentityAuthorizer
	audit     AuditRecorder
}

// NewIdentity wires the identity service.
func NewIdentity(store Store, tokens *TokenService, authorize IdentityAuthorizer, recorder AuditRecorder) (*Identity, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	if authorize == nil {
		return nil, errors.New("auth: authorizer is required")
	}
	return &Identity{store: store, tokens: tokens, authorize: authorize, audit: recorder}, nil
}

// RegisterInput is the payload for registering a new organization with
// its first OWNER.
type RegisterInput struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	OrganizationName string `json:"organization_name"`
}

// RegisterOwner creates an organization and its OWNER in one atomic step
// and returns a signed token pair for the new user. Duplicate email or
// organization name is ErrConflict; under a race the store's unique
// indexes decide, so exactly one of two concurrent registrations wins.
func (s *Identity) RegisterOwner(ctx context.Context, in RegisterInput) (TokenPair, *User, *Organization, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return TokenPair{}, nil, nil, err
	}
	if len(in.Password) < minPasswordLength {
		return TokenPair{}, nil, nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	firstName, lastName, err := normalizeNames(in.FirstName, in.LastName)
	if err != nil {
		return TokenPair{}, nil, nil, err
	}
	orgName := strings.TrimSpace(in.OrganizationName)
	if orgName == "" {
		return TokenPair{}, nil, nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}

	// Friendly pre-checks; the unique indexes remain the authority.
	if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
		return TokenPair{}, nil, nil, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return TokenPair{}, nil, nil, err
	}
	if _, err := s.store.FindOrganizationByName(ctx, orgName); err == nil {
		return TokenPair{}, nil, nil, fmt.Errorf("%w: organization name already taken", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return TokenPair{}, nil, nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return TokenPair{}, nil, nil, err
	}

	org := &Organization{ID: ids.New(), Name: orgName}
	owner := &User{
		ID:             ids.New(),
		OrganizationID: org.ID,
		Email:          email,
		PasswordHash:   hash,
		FirstName:      firstName,
		LastName:       lastName,
		Role:           RoleOwner,
	}
	if err := s.store.CreateOrganizationOwner(ctx, org, owner); err != nil {
		return TokenPair{}, nil, nil, err
	}

	pair, err := s.issueAndPersist(ctx, owner)
	if err != nil {
		return TokenPair{}, nil, nil, err
	}
	s.record(ctx, AuditRegisterOrganization, "Organization", org.ID, owner.ID, org.ID, map[string]string{
		"organization_name": org.Name,
		"owner_email":       owner.Email,
	})
	return pair, owner, org, nil
}

// Login verifies credentials and issues a fresh token pair. Unknown email
// and wrong password produce the identical error and response shape; the
// unknown-email path still runs a bcrypt compare so timing stays uniform.
func (s *Identity) Login(ctx context.Context, email, password string) (TokenPair, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return TokenPair{}, nil, ErrUnauthorized
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = VerifyPassword(string(dummyHash), password)
			return TokenPair{}, nil, ErrUnauthorized
		}
		return TokenPair{}, nil, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, nil, ErrUnauthorized
	}
	pair, err := s.issueAndPersist(ctx, user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Refresh validates a refresh token, re-reads the current user record so
// a role change or removal since issuance takes effect, rotates the
// stored refresh-token hash and issues a new pair.
func (s *Identity) Refresh(ctx context.Context, refreshToken string) (TokenPair, *User, error) {
	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, nil, ErrUnauthorized
	}
	user, err := s.store.FindUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrUnauthorized
		}
		return TokenPair{}, nil, err
	}
	// Rotation: only the most recently issued refresh token is accepted.
	if user.RefreshTokenHash == "" || !VerifyTokenHash(user.RefreshTokenHash, refreshToken) {
		return TokenPair{}, nil, ErrUnauthorized
	}
	pair, err := s.issueAndPersist(ctx, user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Authenticate resolves an access token to the current user record. Used
// by the transport edge before any protected operation; a user deleted
// after issuance fails here even though the signature is still valid.
func (s *Identity) Authenticate(ctx context.Context, accessToken string) (*User, error) {
	claims, err := s.tokens.ValidateAccess(accessToken)
	if err != nil {
		return nil, ErrUnauthorized
	}
	user, err := s.store.FindUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

// AddUserInput is the payload for adding a user to the actor's
// organization.
type AddUserInput struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
}

// AddUser creates a user in the actor's organization with a generated
// temporary credential. The plaintext credential is returned exactly once
// and never persisted; only its hash is stored. MEMBER actors are
// rejected, and creating an OWNER requires an OWNER actor.
func (s *Identity) AddUser(ctx context.Context, actor Actor, in AddUserInput) (*User, string, error) {
	if err := s.authorize.CanAddUser(actor, in.Role); err != nil {
		return nil, "", err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, "", err
	}
	firstName, lastName, err := normalizeNames(in.FirstName, in.LastName)
	if err != nil {
		return nil, "", err
	}

	tempPassword, err := GenerateTempPassword()
	if err != nil {
		return nil, "", err
	}
	hash, err := HashPassword(tempPassword)
	if err != nil {
		return nil, "", err
	}

	user := &User{
		ID:             ids.New(),
		OrganizationID: actor.OrganizationID,
		Email:          email,
		PasswordHash:   hash,
		FirstName:      firstName,
		LastName:       lastName,
		Role:           in.Role,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}
	s.record(ctx, AuditAddUser, "User", user.ID, actor.UserID, actor.OrganizationID, map[string]string{
		"email": user.Email,
		"role":  string(user.Role),
	})
	return user, tempPassword, nil
}

// RemoveUser deletes a user from the actor's organization. The store
// cascades: tasks the user created are deleted, tasks assigned to them
// are unassigned. Removing the organization's last OWNER is ErrConflict.
func (s *Identity) RemoveUser(ctx context.Context, actor Actor, userID string) error {
	target, err := s.store.FindUserInOrganization(ctx, actor.OrganizationID, userID)
	if err != nil {
		return err
	}
	if err := s.authorize.CanRemoveUser(actor, target.Role); err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, target.ID); err != nil {
		return err
	}
	s.record(ctx, AuditRemoveUser, "User", target.ID, actor.UserID, actor.OrganizationID, map[string]string{
		"email": target.Email,
		"role":  string(target.Role),
	})
	return nil
}

// GetUser fetches a user from the actor's organization. Cross-tenant ids
// surface as ErrNotFound because the lookup is scoped by organization.
func (s *Identity) GetUser(ctx context.Context, actor Actor, userID string) (*User, error) {
	user, err := s.store.FindUserInOrganization(ctx, actor.OrganizationID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize.CanReadUser(actor, user.OrganizationID); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns the actor's organization membership directory.
func (s *Identity) ListUsers(ctx context.Context, actor Actor) ([]*User, error) {
	if err := s.authorize.CanReadUsers(actor); err != nil {
		return nil, err
	}
	return s.store.ListUsersByOrganization(ctx, actor.OrganizationID)
}

// Organization fetches the actor's own organization record.
func (s *Identity) Organization(ctx context.Context, actor Actor) (*Organization, error) {
	return s.store.FindOrganization(ctx, actor.OrganizationID)
}

func (s *Identity) issueAndPersist(ctx context.Context, user *User) (TokenPair, error) {
	pair, err := s.tokens.Issue(user)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.SetRefreshTokenHash(ctx, user.ID, HashToken(pair.RefreshToken)); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (s *Identity) record(ctx context.Context, action, entityType, entityID, actorID, orgID string, metadata map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, action, entityType, entityID, actorID, orgID, metadata)
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}

func normalizeNames(first, last string) (string, string, error) {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	if first == "" || last == "" {
		return "", "", fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	}
	return first, last, nil
}
