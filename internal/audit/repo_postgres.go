package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo stores events in audit_events (INSERT-only).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, entity, entity_id, from_status, to_status, actor_user_id, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.Entity,
		e.EntityID,
		e.From,
		e.To,
		e.ActorUserID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByEntity(ctx context.Context, entity, entityID string) ([]Event, error) {
	const q = `
SELECT id, type, entity, entity_id, from_status, to_status, actor_user_id, message, metadata, created_at
FROM audit_events
WHERE entity = $1 AND entity_id = $2
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, entity, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID,
			&e.Type,
			&e.Entity,
			&e.EntityID,
			&e.From,
			&e.To,
			&e.ActorUserID,
			&e.Message,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
