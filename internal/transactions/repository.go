package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/platform/db"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

// Repository persists transactions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, transaction_code, customer_id, branch_id, appointment_id, total_amount::float8, status,
	payment_method, notes, completed_at, created_by, created_at, updated_at`

// List returns one page of transactions and the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]Transaction, int, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.BranchID > 0 {
		add("branch_id = $%d", filter.BranchID)
	}
	if filter.CustomerID > 0 {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.Status != "" {
		add("lower(status) = lower($%d)", filter.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		columns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// Get loads one transaction.
func (r *Repository) Get(ctx context.Context, id int64) (Transaction, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM transactions WHERE id = $1`, id))
}

// Create allocates the next daily code and inserts t in one transaction.
func (r *Repository) Create(ctx context.Context, t Transaction, now time.Time) (Transaction, error) {
	var created Transaction
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		prefix := CodePrefix(now)
		// serialise code allocation per day
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, prefix); err != nil {
			return err
		}
		var last string
		err := tx.QueryRow(ctx, `SELECT transaction_code FROM transactions WHERE transaction_code LIKE $1 || '%'
			ORDER BY transaction_code DESC LIMIT 1`, prefix).Scan(&last)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		t.Code = NextCode(prefix, last)
		created, err = scan(tx.QueryRow(ctx, `INSERT INTO transactions
			(transaction_code, customer_id, branch_id, appointment_id, total_amount, status, payment_method, notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+columns,
			t.Code, t.CustomerID, t.BranchID, t.AppointmentID, t.TotalAmount, t.Status, t.PaymentMethod, t.Notes, t.CreatedBy))
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	return created, nil
}

// Update applies in to id. check sees the row locked FOR UPDATE and may
// refuse the write. Completing a sale stamps completed_at.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput, check func(Transaction) error) (Transaction, error) {
	var updated Transaction
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockAndCheck(ctx, tx, id, check); err != nil {
			return err
		}
		var err error
		updated, err = scan(tx.QueryRow(ctx, `UPDATE transactions SET
			total_amount = COALESCE($2, total_amount),
			payment_method = COALESCE($3, payment_method),
			notes = COALESCE($4, notes),
			status = COALESCE($5, status),
			completed_at = CASE WHEN $5 = 'completed' THEN NOW() ELSE completed_at END,
			updated_at = NOW()
			WHERE id = $1
			RETURNING `+columns, id, in.TotalAmount, in.PaymentMethod, in.Notes, in.Status))
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	return updated, nil
}

// SetStatus forces status on id.
func (r *Repository) SetStatus(ctx context.Context, id int64, status string) (Transaction, error) {
	return scan(r.pool.QueryRow(ctx, `UPDATE transactions SET status = $2, updated_at = NOW() WHERE id = $1
		RETURNING `+columns, id, status))
}

// Delete removes a transaction once check accepts the locked row.
func (r *Repository) Delete(ctx context.Context, id int64, check func(Transaction) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockAndCheck(ctx, tx, id, check); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func lockAndCheck(ctx context.Context, tx pgx.Tx, id int64, check func(Transaction) error) error {
	current, err := scan(tx.QueryRow(ctx, `SELECT `+columns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return err
	}
	if check == nil {
		return nil
	}
	return check(current)
}

func scan(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Code, &t.CustomerID, &t.BranchID, &t.AppointmentID, &t.TotalAmount, &t.Status,
		&t.PaymentMethod, &t.Notes, &t.CompletedAt, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, shared.ErrNotFound
	}
	return t, err
}
