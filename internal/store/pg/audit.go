package pg

import (
	"context"
	"encoding/json"

	"taskhive.org/internal/audit"
)

var _ audit.Store = (*Store)(nil)

func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	var metadata []byte
	if len(entry.Metadata) > 0 {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		metadata = b
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs (id, action, entity_type, entity_id, actor_id, organization_id, metadata, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.Action, entry.EntityType, entry.EntityID, nullIfEmpty(entry.ActorID), entry.OrganizationID, metadata, entry.CreatedAt)
	return err
}

func (s *Store) ListByOrganization(ctx context.Context, orgID string, limit int) ([]*audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, action, entity_type, entity_id, coalesce(actor_id, ''), organization_id, metadata, created_at
		from audit_logs
		where organization_id = $1
		order by created_at desc
		limit $2
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var e audit.Entry
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID,
			&e.ActorID, &e.OrganizationID, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, err
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
