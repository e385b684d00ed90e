package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PostgresRepo stores templates in message_templates; variables are a JSONB array.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const templateColumns = `id, name, content, variables, category, language, status, rejection_reason, submitted_by, created_at, resolved_at`

func (r *PostgresRepo) Create(ctx context.Context, t Template) error {
	vars, err := json.Marshal(nonNil(t.Variables))
	if err != nil {
		return err
	}
	const q = `
INSERT INTO message_templates (` + templateColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`
	_, err = r.db.ExecContext(ctx, q,
		t.ID,
		t.Name,
		t.Content,
		string(vars),
		t.Category,
		t.Language,
		t.Status,
		t.RejectionReason,
		t.SubmittedBy,
		t.CreatedAt,
		t.ResolvedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Template, error) {
	q := `SELECT ` + templateColumns + ` FROM message_templates WHERE id = $1`
	t, err := scanTemplate(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	return t, err
}

func (r *PostgresRepo) Resolve(ctx context.Context, id string, to Status, reason string, at time.Time) (bool, error) {
	const q = `
UPDATE message_templates
SET status = $1, rejection_reason = $2, resolved_at = $3
WHERE id = $4 AND status = 'pending'
`
	res, err := r.db.ExecContext(ctx, q, to, reason, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) List(ctx context.Context, status Status) ([]Template, error) {
	q := `
SELECT ` + templateColumns + ` FROM message_templates
WHERE ($1 = '' OR status = $1)
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (Template, error) {
	var (
		t        Template
		vars     []byte
		resolved sql.NullTime
	)
	if err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Content,
		&vars,
		&t.Category,
		&t.Language,
		&t.Status,
		&t.RejectionReason,
		&t.SubmittedBy,
		&t.CreatedAt,
		&resolved,
	); err != nil {
		return Template{}, err
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &t.Variables); err != nil {
			return Template{}, err
		}
	}
	if resolved.Valid {
		at := resolved.Time
		t.ResolvedAt = &at
	}
	return t, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
