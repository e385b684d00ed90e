package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"crm-interactions/internal/lifecycle"
	"crm-interactions/pkg/utils"
)

// PostgresRepo stores calls in the calls table (see migrations).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `id, direction, counterparty_number, own_number, status, linked_customer_id, linked_ticket_id, agent_user_id, hangup_cause, created_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (` + callColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.Direction,
		c.CounterpartyNumber,
		c.OwnNumber,
		c.Status,
		c.LinkedCustomer,
		c.LinkedTicket,
		c.AgentUserID,
		c.HangupCause,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id string, from, to CallStatus, cause string, at time.Time) (bool, error) {
	const q = `
UPDATE calls
SET status = $1,
    hangup_cause = CASE WHEN $2 = '' THEN hangup_cause ELSE $2 END,
    updated_at = $3
WHERE id = $4 AND status = $5
`
	return execAffected(ctx, r.db, q, to, cause, at, id, from)
}

func (r *PostgresRepo) LinkCustomer(ctx context.Context, id, customerID string, at time.Time) (bool, error) {
	const q = `
UPDATE calls
SET linked_customer_id = $1, updated_at = $2
WHERE id = $3 AND linked_customer_id IS NULL
`
	return execAffected(ctx, r.db, q, customerID, at, id)
}

// LinkTicket locks the call row, re-checks the correlation invariants and
// writes the ticket id, all in one transaction.
func (r *PostgresRepo) LinkTicket(ctx context.Context, id, ticketID string, at time.Time) (bool, error) {
	linked := false
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const lockQ = `
SELECT linked_customer_id, linked_ticket_id
FROM calls
WHERE id = $1
FOR UPDATE
`
		var customer, ticket lifecycle.OptionalID
		if err := tx.QueryRowContext(ctx, lockQ, id).Scan(&customer, &ticket); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if !customer.IsSet() || ticket.IsSet() {
			return nil
		}

		const updQ = `UPDATE calls SET linked_ticket_id = $1, updated_at = $2 WHERE id = $3`
		if _, err := tx.ExecContext(ctx, updQ, ticketID, at, id); err != nil {
			return err
		}
		linked = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return linked, nil
}

func (r *PostgresRepo) ListBetween(ctx context.Context, from, to time.Time) ([]Call, error) {
	q := `
SELECT ` + callColumns + ` FROM calls
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func execAffected(ctx context.Context, db *sql.DB, q string, args ...any) (bool, error) {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID,
		&c.Direction,
		&c.CounterpartyNumber,
		&c.OwnNumber,
		&c.Status,
		&c.LinkedCustomer,
		&c.LinkedTicket,
		&c.AgentUserID,
		&c.HangupCause,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}
