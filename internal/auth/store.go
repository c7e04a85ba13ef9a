package auth

import "context"

// Store describes the persistence operations the identity subsystem
// needs: keyed lookups, filtered lists, inserts and deletes, each a
// single atomic operation. Uniqueness of emails and organization names
// is enforced by the store's unique constraints, never by application
// locking; implementations surface violations as ErrConflict.
type Store interface {
	// CreateOrganizationOwner atomically creates the organization and its
	// first OWNER user. On failure of either insert nothing persists.
	CreateOrganizationOwner(ctx context.Context, org *Organization, owner *User) error

	FindOrganization(ctx context.Context, id string) (*Organization, error)
	FindOrganizationByName(ctx context.Context, name string) (*Organization, error)

	CreateUser(ctx context.Context, u *User) error
	FindUser(ctx context.Context, id string) (*User, error)
	// FindUserInOrganization fetches by (id, organizationID), never by id
	// alone, so cross-tenant ids surface as ErrNotFound.
	FindUserInOrganization(ctx context.Context, orgID, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsersByOrganization(ctx context.Context, orgID string) ([]*User, error)

	SetRefreshTokenHash(ctx context.Context, userID, hash string) error

	// DeleteUser removes the user, deletes tasks they created and clears
	// the assignee on tasks assigned to them, all in one transaction.
	// Deleting an organization's last OWNER is ErrConflict.
	DeleteUser(ctx context.Context, id string) error
}
