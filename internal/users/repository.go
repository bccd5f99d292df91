package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

// Repository provides PostgreSQL backed persistence and the notification directory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectUser = `SELECT id, name, email, role, branch_id, is_active, is_approved, created_at, updated_at FROM users`

// UsersWithRole lists active account ids holding role.
func (r *Repository) UsersWithRole(ctx context.Context, role identity.Role) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users WHERE role = $1 AND is_active ORDER BY id`, string(role))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// UsersWithRoleAndBranch lists active account ids holding role at branchID.
func (r *Repository) UsersWithRoleAndBranch(ctx context.Context, role identity.Role, branchID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users WHERE role = $1 AND branch_id = $2 AND is_active ORDER BY id`, string(role), branchID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// List returns accounts matching filter.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]User, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		clauses = append(clauses, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.BranchID != nil {
		args = append(args, *filter.BranchID)
		clauses = append(clauses, fmt.Sprintf("branch_id = $%d", len(args)))
	}
	if filter.PendingOnly {
		clauses = append(clauses, "NOT is_approved")
	}
	query := selectUser
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.pool.Query(ctx, query+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// Get loads one account.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
}

// Update applies the non-nil fields of in.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	var role *string
	if in.Role != nil {
		v := string(*in.Role)
		role = &v
	}
	row := r.pool.QueryRow(ctx, `UPDATE users SET
		name = COALESCE($2, name),
		email = COALESCE($3, email),
		role = COALESCE($4, role),
		branch_id = COALESCE($5, branch_id),
		is_active = COALESCE($6, is_active),
		updated_at = NOW()
	WHERE id = $1
	RETURNING id, name, email, role, branch_id, is_active, is_approved, created_at, updated_at`,
		id, in.Name, in.Email, role, in.BranchID, in.IsActive)
	return scanUser(row)
}

// Approve marks the account approved.
func (r *Repository) Approve(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `UPDATE users SET is_approved = TRUE, updated_at = NOW() WHERE id = $1
	RETURNING id, name, email, role, branch_id, is_active, is_approved, created_at, updated_at`, id))
}

// Delete removes the account.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user User
		role string
	)
	err := row.Scan(&user.ID, &user.Name, &user.Email, &role, &user.BranchID,
		&user.IsActive, &user.IsApproved, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	user.Role, err = identity.ParseRole(role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

var _ notify.Directory = (*Repository)(nil)
