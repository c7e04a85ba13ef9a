package auth

import "time"

// Organization is the tenancy root. Every user and task belongs to
// exactly one organization; deleting it cascades to everything inside.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a member of exactly one organization. The organization binding
// is immutable after creation. PasswordHash and RefreshTokenHash never
// leave the process.
type User struct {
	ID               string    `json:"id"`
	OrganizationID   string    `json:"organization_id"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Role             Role      `json:"role"`
	RefreshTokenHash string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Actor is the authenticated identity performing an operation, as the
// authorization engine sees it.
type Actor struct {
	UserID         string
	OrganizationID string
	Role           Role
}

// Actor derives the authorization view of the user.
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, OrganizationID: u.OrganizationID, Role: u.Role}
}
