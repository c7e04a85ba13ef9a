package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskhive.org/internal/auth"
)

var _ auth.Store = (*Store)(nil)

const userColumns = `id, organization_id, email, password_hash, first_name, last_name, role, coalesce(refresh_token_hash, ''), created_at, updated_at`

// CreateOrganizationOwner inserts the organization and its first OWNER in
// one transaction: either both rows exist afterwards or neither does.
// The unique indexes on organizations.name and users.email decide races;
// violations surface as ErrConflict.
func (s *Store) CreateOrganizationOwner(ctx context.Context, org *auth.Organization, owner *auth.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into organizations (id, name)
		values ($1, $2)
		returning created_at, updated_at
	`, org.ID, org.Name).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return mapConstraintError(err)
	}

	err = tx.QueryRowContext(ctx, `
		insert into users (id, organization_id, email, password_hash, first_name, last_name, role)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, owner.ID, owner.OrganizationID, owner.Email, owner.PasswordHash, owner.FirstName, owner.LastName, string(owner.Role)).
		Scan(&owner.CreatedAt, &owner.UpdatedAt)
	if err != nil {
		return mapConstraintError(err)
	}

	return tx.Commit()
}

func (s *Store) FindOrganization(ctx context.Context, id string) (*auth.Organization, error) {
	var org auth.Organization
	err := s.db.QueryRowContext(ctx, `
		select id, name, created_at, updated_at
		from organizations
		where id = $1
	`, id).Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *Store) FindOrganizationByName(ctx context.Context, name string) (*auth.Organization, error) {
	var org auth.Organization
	err := s.db.QueryRowContext(ctx, `
		select id, name, created_at, updated_at
		from organizations
		where name = $1
	`, name).Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, organization_id, email, password_hash, first_name, last_name, role)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, u.ID, u.OrganizationID, u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role)).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return mapConstraintError(err)
	}
	return nil
}

func (s *Store) FindUser(ctx context.Context, id string) (*auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1`, id))
}

func (s *Store) FindUserInOrganization(ctx context.Context, orgID, id string) (*auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where organization_id = $1 and id = $2`, orgID, id))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email = $1`, email))
}

func (s *Store) ListUsersByOrganization(ctx context.Context, orgID string) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users where organization_id = $1 order by created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) SetRefreshTokenHash(ctx context.Context, userID, hash string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set refresh_token_hash = nullif($2, ''), updated_at = now()
		where id = $1
	`, userID, hash)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// DeleteUser removes the user inside one transaction: tasks they created
// are deleted, tasks assigned to them are unassigned, then the row goes.
// The organization's last OWNER cannot be removed.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var orgID, role string
	err = tx.QueryRowContext(ctx,
		`select organization_id, role from users where id = $1 for update`, id).
		Scan(&orgID, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	if err != nil {
		return err
	}

	if role == string(auth.RoleOwner) {
		var owners int
		err = tx.QueryRowContext(ctx,
			`select count(*) from users where organization_id = $1 and role = $2`,
			orgID, string(auth.RoleOwner)).Scan(&owners)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return fmt.Errorf("%w: cannot remove the organization's last owner", auth.ErrConflict)
		}
	}

	if _, err := tx.ExecContext(ctx, `delete from tasks where created_by_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		update tasks set assignee_id = null, updated_at = now() where assignee_id = $1
	`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from users where id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanUser(row rowScanner) (*auth.User, error) {
	u, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanUserRow(row rowScanner) (*auth.User, error) {
	var u auth.User
	var role string
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash,
		&u.FirstName, &u.LastName, &role, &u.RefreshTokenHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

func mapConstraintError(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.ErrConflict
		case pgErrForeignKeyViolation:
			return auth.ErrNotFound
		}
	}
	return err
}
