package branches

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/masterdata/shared"
)

// Repository reads branches.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Branch, int, error)
	Get(ctx context.Context, id int64) (Branch, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the postgres branch repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectBranch = `SELECT id, code, name, address, is_active, created_at, updated_at FROM branches`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Branch, int, error) {
	var where shared.Where
	where.Search(filters.Search, "name", "code", "address")
	if filters.IsActive != nil {
		where.Add("is_active = %s", *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM branches`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count branches: %w", err)
	}
	if total == 0 {
		return []Branch{}, 0, nil
	}

	query, args := where.Paged(selectBranch, "name, id", filters)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list branches: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[Branch])
	if err != nil {
		return nil, 0, fmt.Errorf("scan branches: %w", err)
	}
	return out, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Branch, error) {
	rows, err := r.pool.Query(ctx, selectBranch+` WHERE id = $1`, id)
	if err != nil {
		return Branch{}, fmt.Errorf("get branch: %w", err)
	}
	b, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Branch])
	if errors.Is(err, pgx.ErrNoRows) {
		return Branch{}, shared.ErrNotFound
	}
	return b, err
}
