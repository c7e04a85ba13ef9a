package task

import (
	"context"

	"taskhive.org/internal/authz"
)

// Store is the persistence contract for tasks. Single-entity operations
// are keyed by (organizationID, id), never by id alone, so rows from
// other tenants are indistinguishable from absent rows.
type Store interface {
	Create(ctx context.Context, t *Task) error
	Find(ctx context.Context, orgID, id string) (*Task, error)
	// List returns the organization's tasks newest first, narrowed by the
	// engine's visibility filter.
	List(ctx context.Context, orgID string, filter authz.Filter) ([]*Task, error)
	// Update applies only the fields present in the partial update and
	// returns the stored row.
	Update(ctx context.Context, orgID, id string, upd Update) (*Task, error)
	Delete(ctx context.Context, orgID, id string) error
}
