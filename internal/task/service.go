// Package task is the repository façade for tasks: every read and write
// consults the authorization engine before touching storage, and tenancy
// scoping happens in the query itself rather than after the fact.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskhive.org/internal/auth"
	"taskhive.org/internal/authz"
	"taskhive.org/internal/ids"
)

// Audit action tags emitted by task operations.
const (
	AuditCreateTask = "CREATE_TASK"
	AuditUpdateTask = "UPDATE_TASK"
	AuditDeleteTask = "DELETE_TASK"
)

// UserDirectory is the slice of the identity store the façade needs to
// re-validate that an assignee belongs to the task's organization.
type UserDirectory interface {
	FindUserInOrganization(ctx context.Context, orgID, id string) (*auth.User, error)
}

// Service wraps raw task storage with the engine's predicates.
type Service struct {
	store  Store
	users  UserDirectory
	engine *authz.Engine
	audit  auth.AuditRecorder
}

// NewService wires the façade.
func NewService(store Store, users UserDirectory, engine *authz.Engine, recorder auth.AuditRecorder) (*Service, error) {
	if store == nil {
		return nil, errors.New("task: store is required")
	}
	if users == nil {
		return nil, errors.New("task: user directory is required")
	}
	if engine == nil {
		return nil, errors.New("task: authorization engine is required")
	}
	return &Service{store: store, users: users, engine: engine, audit: recorder}, nil
}

// Create makes a new task in the actor's organization. An unassigned
// request defaults to self-assignment; an explicit assignee must be a
// member of the actor's organization, verified by keyed lookup.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", auth.ErrInvalidInput)
	}
	if err := s.engine.CanCreateTask(actor, in.AssigneeID); err != nil {
		return nil, err
	}

	assigneeID := in.AssigneeID
	if assigneeID == nil {
		self := actor.UserID
		assigneeID = &self
	} else if err := s.checkAssignee(ctx, actor.OrganizationID, *assigneeID); err != nil {
		return nil, err
	}

	t := &Task{
		ID:             ids.New(),
		OrganizationID: actor.OrganizationID,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Completed:      false,
		CreatedByID:    actor.UserID,
		AssigneeID:     assigneeID,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	s.record(ctx, AuditCreateTask, t, actor, map[string]string{"title": t.Title})
	return t, nil
}

// List returns the tasks the actor may see, newest first. The engine's
// visibility filter is part of the query, so out-of-scope rows are never
// materialized.
func (s *Service) List(ctx context.Context, actor auth.Actor) ([]*Task, error) {
	filter := s.engine.TaskFilter(actor)
	return s.store.List(ctx, actor.OrganizationID, filter)
}

// Get fetches a single task. Absent and cross-tenant ids are
// ErrNotFound; a row the fetch returned but the engine rejects is
// ErrForbidden.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (*Task, error) {
	t, err := s.fetch(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CanReadTask(actor, t.Target()); err != nil {
		return nil, err
	}
	return t, nil
}

// ApplyUpdate applies a partial update. Fields absent from the payload
// stay untouched; an explicitly null assignee unassigns the task. A new
// assignee's organization membership is re-validated before persisting.
func (s *Service) ApplyUpdate(ctx context.Context, actor auth.Actor, id string, upd Update) (*Task, error) {
	t, err := s.fetch(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CanUpdateTask(actor, t.Target()); err != nil {
		return nil, err
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", auth.ErrInvalidInput)
	}
	if upd.AssigneeSet && upd.AssigneeID != nil {
		if err := s.checkAssignee(ctx, actor.OrganizationID, *upd.AssigneeID); err != nil {
			return nil, err
		}
	}
	if upd.empty() {
		return t, nil
	}
	updated, err := s.store.Update(ctx, actor.OrganizationID, id, upd)
	if err != nil {
		return nil, err
	}
	s.record(ctx, AuditUpdateTask, updated, actor, updateMetadata(upd))
	return updated, nil
}

// Delete removes a task under the engine's delete predicate.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id string) error {
	t, err := s.fetch(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.engine.CanDeleteTask(actor, t.Target()); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, actor.OrganizationID, id); err != nil {
		return err
	}
	s.record(ctx, AuditDeleteTask, t, actor, map[string]string{"title": t.Title})
	return nil
}

func (s *Service) fetch(ctx context.Context, actor auth.Actor, id string) (*Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: task id is required", auth.ErrInvalidInput)
	}
	return s.store.Find(ctx, actor.OrganizationID, id)
}

func (s *Service) checkAssignee(ctx context.Context, orgID, assigneeID string) error {
	if strings.TrimSpace(assigneeID) == "" {
		return fmt.Errorf("%w: assignee id cannot be empty", auth.ErrInvalidInput)
	}
	if _, err := s.users.FindUserInOrganization(ctx, orgID, assigneeID); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return fmt.Errorf("%w: assignee must belong to your organization", auth.ErrForbidden)
		}
		return err
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, t *Task, actor auth.Actor, metadata map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, action, "Task", t.ID, actor.UserID, actor.OrganizationID, metadata)
}

func updateMetadata(upd Update) map[string]string {
	md := map[string]string{}
	if upd.Title != nil {
		md["title"] = *upd.Title
	}
	if upd.Completed != nil {
		md["completed"] = fmt.Sprintf("%t", *upd.Completed)
	}
	if upd.AssigneeSet {
		if upd.AssigneeID == nil {
			md["assignee"] = "unassigned"
		} else {
			md["assignee"] = *upd.AssigneeID
		}
	}
	return md
}
