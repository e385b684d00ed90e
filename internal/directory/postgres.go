package directory

import (
	"context"
	"database/sql"

	"crm-interactions/internal/calls"
)

// PostgresDirectory reads customers from the CRM customers table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory { return &PostgresDirectory{db: db} }

// LookupByPhone matches the number exactly as given; oldest customer first.
func (d *PostgresDirectory) LookupByPhone(ctx context.Context, phone string) ([]calls.Customer, error) {
	const q = `
SELECT id, name, phone, COALESCE(email, '')
FROM customers
WHERE phone = $1
ORDER BY created_at ASC, id ASC
`
	rows, err := d.db.QueryContext(ctx, q, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]calls.Customer, 0)
	for rows.Next() {
		var c calls.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
