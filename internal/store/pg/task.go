package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskhive.org/internal/auth"
	"taskhive.org/internal/authz"
	"taskhive.org/internal/task"
)

var _ task.Store = (*Store)(nil)

const taskColumns = `id, organization_id, title, coalesce(description, ''), completed, created_by_id, assignee_id, created_at, updated_at`

func (s *Store) Create(ctx context.Context, t *task.Task) error {
	var assignee sql.NullString
	if t.AssigneeID != nil {
		assignee = sql.NullString{String: *t.AssigneeID, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, `
		insert into tasks (id, organization_id, title, description, completed, created_by_id, assignee_id)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, t.ID, t.OrganizationID, t.Title, nullIfEmpty(t.Description), t.Completed, t.CreatedByID, assignee).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return mapConstraintError(err)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, orgID, id string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+taskColumns+` from tasks where organization_id = $1 and id = $2`, orgID, id)
	t, err := scanTaskRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) List(ctx context.Context, orgID string, filter authz.Filter) ([]*task.Task, error) {
	query := `select ` + taskColumns + ` from tasks where organization_id = $1`
	args := []any{orgID}
	if filter.InvolvedUserID != "" {
		query += ` and (created_by_id = $2 or assignee_id = $2)`
		args = append(args, filter.InvolvedUserID)
	}
	query += ` order by created_at desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update builds the SET list from the fields present in the partial
// update and returns the stored row. The tri-state assignee maps to
// either a bind value or an explicit NULL.
func (s *Store) Update(ctx context.Context, orgID, id string, upd task.Update) (*task.Task, error) {
	sets := []string{"updated_at = now()"}
	args := []any{}
	n := 0
	bind := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if upd.Title != nil {
		sets = append(sets, "title = "+bind(*upd.Title))
	}
	if upd.Description != nil {
		sets = append(sets, "description = "+bind(nullIfEmpty(*upd.Description)))
	}
	if upd.Completed != nil {
		sets = append(sets, "completed = "+bind(*upd.Completed))
	}
	if upd.AssigneeSet {
		if upd.AssigneeID == nil {
			sets = append(sets, "assignee_id = NULL")
		} else {
			sets = append(sets, "assignee_id = "+bind(*upd.AssigneeID))
		}
	}

	query := fmt.Sprintf(`
		update tasks set %s
		where organization_id = %s and id = %s
		returning `+taskColumns,
		strings.Join(sets, ", "), bind(orgID), bind(id))

	t, err := scanTaskRow(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, mapConstraintError(err)
	}
	return t, nil
}

func (s *Store) Delete(ctx context.Context, orgID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from tasks where organization_id = $1 and id = $2`, orgID, id)
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

func scanTaskRow(row rowScanner) (*task.Task, error) {
	var t task.Task
	var assignee sql.NullString
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Title, &t.Description, &t.Completed,
		&t.CreatedByID, &assignee, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.String
	}
	return &t, nil
}
