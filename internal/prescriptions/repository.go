package prescriptions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

// Repository persists prescriptions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, COALESCE(prescription_number, ''), patient_id, optometrist_id, appointment_id, branch_id, type,
	right_eye, left_eye, notes, issue_date, expiry_date, status, created_at, updated_at`

// List returns prescriptions matching filter, newest issue first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Prescription, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.PatientID > 0 {
		add("patient_id = $%d", filter.PatientID)
	}
	if filter.OptometristID > 0 {
		add("optometrist_id = $%d", filter.OptometristID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	query := `SELECT ` + columns + ` FROM prescriptions`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	return r.query(ctx, query+` ORDER BY issue_date DESC, id DESC`, args...)
}

// ExpiringBetween lists active prescriptions whose expiry date falls in [from, to].
func (r *Repository) ExpiringBetween(ctx context.Context, from, to time.Time) ([]Prescription, error) {
	return r.query(ctx, `SELECT `+columns+` FROM prescriptions
		WHERE status = 'active' AND expiry_date BETWEEN $1::date AND $2::date
		ORDER BY expiry_date, id`, from, to)
}

// Get loads one prescription.
func (r *Repository) Get(ctx context.Context, id int64) (Prescription, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM prescriptions WHERE id = $1`, id))
}

// Create inserts p and returns the stored row.
func (r *Repository) Create(ctx context.Context, p Prescription) (Prescription, error) {
	right, left, err := marshalEyes(p.RightEye, p.LeftEye)
	if err != nil {
		return Prescription{}, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO prescriptions
		(prescription_number, patient_id, optometrist_id, appointment_id, branch_id, type, right_eye, left_eye, notes, issue_date, expiry_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+columns,
		p.Number, p.PatientID, p.OptometristID, p.AppointmentID, p.BranchID, p.Type, right, left, p.Notes, p.IssueDate, p.ExpiryDate, p.Status)
	return scan(row)
}

// Update applies changes to id.
func (r *Repository) Update(ctx context.Context, id int64, c Changes) (Prescription, error) {
	var right, left []byte
	var err error
	if c.RightEye != nil {
		if right, err = json.Marshal(c.RightEye); err != nil {
			return Prescription{}, err
		}
	}
	if c.LeftEye != nil {
		if left, err = json.Marshal(c.LeftEye); err != nil {
			return Prescription{}, err
		}
	}
	row := r.pool.QueryRow(ctx, `UPDATE prescriptions SET
		type = COALESCE($2, type),
		right_eye = COALESCE($3::jsonb, right_eye),
		left_eye = COALESCE($4::jsonb, left_eye),
		notes = COALESCE($5, notes),
		expiry_date = COALESCE($6::date, expiry_date),
		status = COALESCE($7, status),
		updated_at = NOW()
		WHERE id = $1
		RETURNING `+columns, id, c.Type, right, left, c.Notes, c.ExpiryDate, c.Status)
	return scan(row)
}

// Delete removes a prescription.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]Prescription, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Prescription
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scan(row pgx.Row) (Prescription, error) {
	var (
		p           Prescription
		right, left []byte
	)
	err := row.Scan(&p.ID, &p.Number, &p.PatientID, &p.OptometristID, &p.AppointmentID, &p.BranchID, &p.Type,
		&right, &left, &p.Notes, &p.IssueDate, &p.ExpiryDate, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Prescription{}, shared.ErrNotFound
		}
		return Prescription{}, err
	}
	if len(right) > 0 {
		if err := json.Unmarshal(right, &p.RightEye); err != nil {
			return Prescription{}, fmt.Errorf("prescriptions: decode right_eye: %w", err)
		}
	}
	if len(left) > 0 {
		if err := json.Unmarshal(left, &p.LeftEye); err != nil {
			return Prescription{}, fmt.Errorf("prescriptions: decode left_eye: %w", err)
		}
	}
	return p, nil
}

func marshalEyes(right, left Eye) ([]byte, []byte, error) {
	r, err := json.Marshal(right)
	if err != nil {
		return nil, nil, err
	}
	l, err := json.Marshal(left)
	if err != nil {
		return nil, nil, err
	}
	return r, l, nil
}
