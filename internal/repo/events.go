package repo

import (
	"context"

	"belkon/internal/domain"
)

// ListEvents returns org-scoped events after the given id, oldest first.
// Used by both the audit API and the webhook dispatcher cursor.
func (r Repo) ListEvents(ctx context.Context, orgID string, afterID int64, limit int) ([]domain.Event, error) {
	query := `SELECT id,ts,type,org_id,entity_kind,entity_id,actor_id,payload_json FROM events WHERE org_id=? AND id>? ORDER BY id`
	args := []any{orgID, afterID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryEvents(ctx, query, args...)
}

// ListAllEvents returns events across all orgs after the given id, oldest
// first. Webhooks are configured globally, so the dispatcher reads the full
// stream.
func (r Repo) ListAllEvents(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	query := `SELECT id,ts,type,org_id,entity_kind,entity_id,actor_id,payload_json FROM events WHERE id>? ORDER BY id`
	args := []any{afterID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryEvents(ctx, query, args...)
}

// LatestEventID returns the highest event id, or zero when the log is empty.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.OrgID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
