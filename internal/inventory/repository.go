package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/platform/db"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, productID, branchID int64) (Stock, error)
	UpsertStock(ctx context.Context, stock Stock) (Stock, error)
	InsertMovement(ctx context.Context, m Movement) error
}

type txRepo struct {
	tx pgx.Tx
}

// ErrStockNotFound indicates missing branch stock row.
var ErrStockNotFound = errors.New("inventory: branch stock not found")

const stockColumns = `id, product_id, branch_id, stock_quantity, reserved_quantity, min_stock_threshold, updated_at`

// WithTx runs fn in one transaction; the stock row is locked FOR UPDATE.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get loads the stock of product at branch.
func (r *Repository) Get(ctx context.Context, productID, branchID int64) (Stock, error) {
	s, err := scanStock(r.pool.QueryRow(ctx, `SELECT `+stockColumns+` FROM branch_stock
		WHERE product_id = $1 AND branch_id = $2`, productID, branchID))
	if errors.Is(err, ErrStockNotFound) {
		return Stock{}, shared.ErrNotFound
	}
	return s, err
}

// List returns stock rows of a branch, or of every branch when branchID is 0.
func (r *Repository) List(ctx context.Context, branchID int64) ([]Stock, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stockColumns+` FROM branch_stock
		WHERE ($1 = 0 OR branch_id = $1) ORDER BY branch_id, product_id`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LowStock lists rows whose available quantity is at or below the threshold.
func (r *Repository) LowStock(ctx context.Context, branchID int64) ([]LowStockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.product_id, s.branch_id, s.stock_quantity, s.reserved_quantity,
		s.min_stock_threshold, s.updated_at, p.name, p.sku, p.primary_image, b.name, b.address
		FROM branch_stock s
		JOIN products p ON p.id = s.product_id
		JOIN branches b ON b.id = s.branch_id
		WHERE s.stock_quantity - s.reserved_quantity <= s.min_stock_threshold
		  AND p.is_active AND ($1 = 0 OR s.branch_id = $1)
		ORDER BY s.branch_id, s.stock_quantity - s.reserved_quantity, s.product_id`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LowStockItem
	for rows.Next() {
		var item LowStockItem
		s := &item.Stock
		if err := rows.Scan(&s.ID, &s.ProductID, &s.BranchID, &s.Quantity, &s.Reserved, &s.Threshold, &s.UpdatedAt,
			&item.Product.Name, &item.Product.SKU, &item.Product.Image, &item.Branch.Name, &item.Branch.Address); err != nil {
			return nil, err
		}
		item.Product.ID = s.ProductID
		item.Branch.ID = s.BranchID
		out = append(out, item)
	}
	return out, rows.Err()
}

// Movements returns the newest stock card entries first.
func (r *Repository) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, code, kind, product_id, branch_id, delta, balance, note,
		COALESCE(actor_id, 0), created_at
		FROM stock_movements WHERE product_id = $1 AND branch_id = $2
		ORDER BY created_at DESC, id DESC LIMIT $3`, filter.ProductID, filter.BranchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.Code, &m.Kind, &m.ProductID, &m.BranchID, &m.Delta, &m.Balance, &m.Note,
			&m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *txRepo) GetStockForUpdate(ctx context.Context, productID, branchID int64) (Stock, error) {
	return scanStock(r.tx.QueryRow(ctx, `SELECT `+stockColumns+` FROM branch_stock
		WHERE product_id = $1 AND branch_id = $2 FOR UPDATE`, productID, branchID))
}

func (r *txRepo) UpsertStock(ctx context.Context, s Stock) (Stock, error) {
	return scanStock(r.tx.QueryRow(ctx, `INSERT INTO branch_stock
		(product_id, branch_id, stock_quantity, reserved_quantity, min_stock_threshold, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (product_id, branch_id) DO UPDATE SET
			stock_quantity = EXCLUDED.stock_quantity,
			min_stock_threshold = EXCLUDED.min_stock_threshold,
			updated_at = NOW()
		RETURNING `+stockColumns, s.ProductID, s.BranchID, s.Quantity, s.Reserved, s.Threshold))
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements
		(code, kind, product_id, branch_id, delta, balance, note, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8::bigint, 0))`,
		m.Code, m.Kind, m.ProductID, m.BranchID, m.Delta, m.Balance, m.Note, m.ActorID)
	return err
}

func scanStock(row pgx.Row) (Stock, error) {
	var s Stock
	err := row.Scan(&s.ID, &s.ProductID, &s.BranchID, &s.Quantity, &s.Reserved, &s.Threshold, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stock{}, ErrStockNotFound
	}
	return s, err
}
