package messages

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo stores messages in the messages table (see migrations).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const messageColumns = `id, sender, body, room, subject_id, status, retry_of, template_id, failure_reason, created_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, m Message) error {
	const q = `
INSERT INTO messages (` + messageColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`
	_, err := r.db.ExecContext(ctx, q,
		m.ID,
		m.Sender,
		m.Text,
		m.Room,
		m.SubjectID,
		m.Status,
		m.RetryOf,
		m.TemplateID,
		m.FailureReason,
		m.Timestamp,
		m.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	m, err := scanMessage(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	return m, err
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id string, from, to Status, reason string, at time.Time) (bool, error) {
	const q = `
UPDATE messages
SET status = $1,
    failure_reason = CASE WHEN $2 = '' THEN failure_reason ELSE $2 END,
    updated_at = $3
WHERE id = $4 AND status = $5
`
	res, err := r.db.ExecContext(ctx, q, to, reason, at, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) ListByRoom(ctx context.Context, room string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 500
	}
	// Newest page, returned oldest first.
	q := `
SELECT ` + messageColumns + ` FROM (
	SELECT ` + messageColumns + ` FROM messages
	WHERE room = $1
	ORDER BY created_at DESC, id DESC
	LIMIT $2
) page
ORDER BY created_at ASC, id ASC
`
	return r.query(ctx, q, room, limit)
}

func (r *PostgresRepo) ListUnread(ctx context.Context, room string) ([]Message, error) {
	q := `
SELECT ` + messageColumns + ` FROM messages
WHERE room = $1 AND sender = $2 AND status IN ($3, $4)
ORDER BY created_at ASC, id ASC
`
	return r.query(ctx, q, room, SenderOperator, StatusSent, StatusDelivered)
}

func (r *PostgresRepo) ListBetween(ctx context.Context, from, to time.Time) ([]Message, error) {
	q := `
SELECT ` + messageColumns + ` FROM messages
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at ASC, id ASC
`
	return r.query(ctx, q, from, to)
}

func (r *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (Message, error) {
	var m Message
	err := row.Scan(
		&m.ID,
		&m.Sender,
		&m.Text,
		&m.Room,
		&m.SubjectID,
		&m.Status,
		&m.RetryOf,
		&m.TemplateID,
		&m.FailureReason,
		&m.Timestamp,
		&m.UpdatedAt,
	)
	return m, err
}
