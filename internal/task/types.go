package task

import (
	"time"

	"taskhive.org/internal/authz"
)

// Task belongs to exactly one organization and has an immutable creator.
// The assignee is optional and, whenever set, must belong to the same
// organization as the task.
type Task struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Completed      bool      `json:"completed"`
	CreatedByID    string    `json:"created_by_id"`
	AssigneeID     *string   `json:"assignee_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Target converts the task into the authorization engine's view of it.
func (t *Task) Target() authz.TaskTarget {
	return authz.TaskTarget{
		OrganizationID: t.OrganizationID,
		CreatedByID:    t.CreatedByID,
		AssigneeID:     t.AssigneeID,
	}
}

// CreateInput is the payload for creating a task.
type CreateInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	AssigneeID  *string `json:"assignee_id"`
}

// Update is a partial update. Nil pointers leave the field untouched.
// The assignee is tri-state: AssigneeSet=false leaves it alone,
// AssigneeSet=true with a nil AssigneeID clears it (unassign), and with
// a non-nil AssigneeID reassigns.
type Update struct {
	Title       *string
	Description *string
	Completed   *bool
	AssigneeID  *string
	AssigneeSet bool
}

func (u Update) empty() bool {
	return u.Title == nil && u.Description == nil && u.Completed == nil && !u.AssigneeSet
}
