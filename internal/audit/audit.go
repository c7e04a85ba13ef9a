// Package audit is the append-only trail of privileged and mutating
// actions. Entries are immutable once written and are never updated or
// deleted by the core.
package audit

import (
	"context"
	"errors"
	"time"

	"taskhive.org/internal/auth"
	"taskhive.org/internal/ids"
	"taskhive.org/internal/obs"
)

// DefaultPageSize caps ListForOrganization so a large trail can't turn
// into an unbounded scan.
const DefaultPageSize = 100

// Entry is one recorded action, keyed by organization.
type Entry struct {
	ID             string            `json:"id"`
	Action         string            `json:"action"`
	EntityType     string            `json:"entity_type"`
	EntityID       string            `json:"entity_id"`
	ActorID        string            `json:"actor_id"`
	OrganizationID string            `json:"organization_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Store appends and reads entries. Append is a single insert; no caller
// transaction ever spans a primary write and its audit append.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListByOrganization(ctx context.Context, orgID string, limit int) ([]*Entry, error)
}

// Authorizer gates audit reads; only OWNER and ADMIN pass.
type Authorizer interface {
	CanReadAuditLog(actor auth.Actor, orgID string) error
}

// Recorder writes and serves the trail.
type Recorder struct {
	store     Store
	authorize Authorizer
	pageSize  int
}

// NewRecorder wires the recorder. pageSize <= 0 falls back to the
// default cap.
func NewRecorder(store Store, authorize Authorizer, pageSize int) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	if authorize == nil {
		return nil, errors.New("audit: authorizer is required")
	}
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	return &Recorder{store: store, authorize: authorize, pageSize: pageSize}, nil
}

// Record appends an entry best-effort. A failed append never rolls back
// or blocks the primary operation it accompanies: the error is logged
// and counted for operational monitoring, then dropped. The write runs
// detached from the request's cancellation so an abandoned request still
// leaves its trace.
func (r *Recorder) Record(ctx context.Context, action, entityType, entityID, actorID, organizationID string, metadata map[string]string) {
	entry := &Entry{
		ID:             ids.New(),
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		ActorID:        actorID,
		OrganizationID: organizationID,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.store.Append(context.WithoutCancel(ctx), entry); err != nil {
		obs.AuditAppendFailures.Inc()
		obs.LogEvent(map[string]any{
			"level":  "error",
			"msg":    "audit append failed",
			"action": action,
			"org_id": organizationID,
			"error":  err.Error(),
		})
	}
}

// ListForOrganization returns the caller's organization trail, newest
// first, capped at the configured page size. Readable only by OWNER and
// ADMIN; the organization scope comes from the actor, never from input.
func (r *Recorder) ListForOrganization(ctx context.Context, actor auth.Actor) ([]*Entry, error) {
	if err := r.authorize.CanReadAuditLog(actor, actor.OrganizationID); err != nil {
		return nil, err
	}
	return r.store.ListByOrganization(ctx, actor.OrganizationID, r.pageSize)
}
