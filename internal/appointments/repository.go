package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

// Repository persists appointments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectAppointments = `SELECT a.id, a.patient_id, a.optometrist_id, a.branch_id, a.appointment_date,
	to_char(a.start_time, 'HH24:MI'), COALESCE(to_char(a.end_time, 'HH24:MI'), ''), a.type, a.status, a.notes,
	a.created_at, a.updated_at, p.name, p.email, o.name, o.email, b.name
	FROM appointments a
	JOIN users p ON p.id = a.patient_id
	JOIN users o ON o.id = a.optometrist_id
	LEFT JOIN branches b ON b.id = a.branch_id`

// List returns appointments matching filter in calendar order.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.PatientID > 0 {
		add("a.patient_id = $%d", filter.PatientID)
	}
	if filter.OptometristID > 0 {
		add("a.optometrist_id = $%d", filter.OptometristID)
	}
	if filter.BranchID > 0 {
		add("a.branch_id = $%d", filter.BranchID)
	}
	if filter.Status != "" {
		add("a.status = $%d", filter.Status)
	}
	if filter.Date != nil {
		add("a.appointment_date = $%d::date", filter.Date.Format(dateLayout))
	}
	query := selectAppointments
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	return r.query(ctx, query+` ORDER BY a.appointment_date, a.start_time, a.id`, args...)
}

// ScheduledOn lists appointments still in the scheduled state on day.
func (r *Repository) ScheduledOn(ctx context.Context, day time.Time) ([]Appointment, error) {
	return r.query(ctx, selectAppointments+` WHERE a.appointment_date = $1::date AND a.status = $2
		ORDER BY a.start_time, a.id`, day.Format(dateLayout), StatusScheduled)
}

// Get loads one appointment with its participants.
func (r *Repository) Get(ctx context.Context, id int64) (Appointment, error) {
	return scan(r.pool.QueryRow(ctx, selectAppointments+` WHERE a.id = $1`, id))
}

// Create inserts a and returns the stored row.
func (r *Repository) Create(ctx context.Context, a Appointment) (Appointment, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO appointments
		(patient_id, optometrist_id, branch_id, appointment_date, start_time, end_time, type, status, notes)
		VALUES ($1, $2, $3, $4::date, $5::time, NULLIF($6, '')::time, $7, $8, $9)
		RETURNING id`,
		a.PatientID, a.OptometristID, a.BranchID, a.Date.Format(dateLayout), a.StartTime, a.EndTime,
		a.Type, a.Status, a.Notes).Scan(&id)
	if err != nil {
		return Appointment{}, err
	}
	return r.Get(ctx, id)
}

// Update applies c to id.
func (r *Repository) Update(ctx context.Context, id int64, c Changes) (Appointment, error) {
	var date *string
	if c.Date != nil {
		s := c.Date.Format(dateLayout)
		date = &s
	}
	tag, err := r.pool.Exec(ctx, `UPDATE appointments SET
		appointment_date = COALESCE($2::date, appointment_date),
		start_time = COALESCE($3::time, start_time),
		end_time = COALESCE($4::time, end_time),
		type = COALESCE($5, type),
		status = COALESCE($6, status),
		notes = COALESCE($7, notes),
		updated_at = NOW()
		WHERE id = $1`, id, date, c.StartTime, c.EndTime, c.Type, c.Status, c.Notes)
	if err != nil {
		return Appointment{}, err
	}
	if tag.RowsAffected() == 0 {
		return Appointment{}, shared.ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes an appointment.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Overlaps reports whether the optometrist already holds a live booking
// intersecting slot.
func (r *Repository) Overlaps(ctx context.Context, slot Slot) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM appointments
		WHERE optometrist_id = $1 AND appointment_date = $2::date AND id <> $5
		  AND status NOT IN ('cancelled', 'no_show')
		  AND start_time < $4::time AND COALESCE(end_time, start_time + $6::interval) > $3::time
	)`, slot.OptometristID, slot.Date.Format(dateLayout), slot.StartTime, slot.EndTime, slot.ExcludeID, defaultLength).Scan(&exists)
	return exists, err
}

// RoleOf returns the role of an active user.
func (r *Repository) RoleOf(ctx context.Context, userID int64) (identity.Role, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 AND is_active`, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return identity.ParseRole(role)
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scan(row pgx.Row) (Appointment, error) {
	var (
		a                 Appointment
		patient, optician notify.Person
		branchName        *string
	)
	err := row.Scan(&a.ID, &a.PatientID, &a.OptometristID, &a.BranchID, &a.Date, &a.StartTime, &a.EndTime,
		&a.Type, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
		&patient.Name, &patient.Email, &optician.Name, &optician.Email, &branchName)
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, shared.ErrNotFound
	}
	if err != nil {
		return Appointment{}, err
	}
	patient.ID = a.PatientID
	optician.ID = a.OptometristID
	a.Patient = &patient
	a.Optometrist = &optician
	if a.BranchID != nil && branchName != nil {
		a.Branch = &notify.BranchRef{ID: *a.BranchID, Name: *branchName}
	}
	return a, nil
}
