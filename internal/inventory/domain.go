// Package inventory keeps per-branch stock levels and raises low-stock alerts.
package inventory

import (
	"fmt"
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

// DefaultThreshold applies to stock rows created without an explicit threshold.
const DefaultThreshold = 5

// Movement kinds.
const (
	KindSet    = "SET"
	KindAdjust = "ADJUST"
)

// ChangeLowStock is the inventory change type published for low stock.
const ChangeLowStock = "low_stock"

// Stock is the level of one product at one branch.
type Stock struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	BranchID  int64     `json:"branch_id"`
	Quantity  int       `json:"stock_quantity"`
	Reserved  int       `json:"reserved_quantity"`
	Threshold int       `json:"min_stock_threshold"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Available is the quantity that can still be sold.
func (s Stock) Available() int {
	return s.Quantity - s.Reserved
}

// Status classifies the available quantity against the threshold.
func (s Stock) Status() notify.StockState {
	return notify.StockStatus(s.Available(), s.Threshold)
}

// Low reports whether the stock needs restocking.
func (s Stock) Low() bool {
	return s.Status() == notify.StockLow
}

// Snapshot returns the policy view of the stock row.
func (s Stock) Snapshot() policy.Stock {
	return policy.Stock{BranchID: s.BranchID}
}

// View is the JSON shape returned by the API.
type View struct {
	Stock
	Available int               `json:"available_quantity"`
	Status    notify.StockState `json:"status"`
}

// ToView decorates s with derived fields.
func (s Stock) ToView() View {
	return View{Stock: s, Available: s.Available(), Status: s.Status()}
}

// LowStockItem is a low stock row with the references carried in alerts.
type LowStockItem struct {
	Stock   Stock          `json:"stock"`
	Product notify.Product `json:"product"`
	Branch  notify.Branch  `json:"branch"`
}

// Movement is one entry of the stock card.
type Movement struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Kind      string    `json:"kind"`
	ProductID int64     `json:"product_id"`
	BranchID  int64     `json:"branch_id"`
	Delta     int       `json:"delta"`
	Balance   int       `json:"balance"`
	Note      string    `json:"note"`
	ActorID   int64     `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MovementFilter filters the stock card.
type MovementFilter struct {
	ProductID int64
	BranchID  int64
	Limit     int
}

// SetStockInput replaces the on-hand quantity.
type SetStockInput struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	BranchID  int64  `json:"branch_id" validate:"required,gt=0"`
	Quantity  int    `json:"stock_quantity" validate:"gte=0"`
	Threshold *int   `json:"min_stock_threshold" validate:"omitempty,gte=0"`
	Code      string `json:"code" validate:"max=64"`
	Note      string `json:"note" validate:"max=500"`
}

// AdjustInput moves the on-hand quantity by Delta.
type AdjustInput struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	BranchID  int64  `json:"branch_id" validate:"required,gt=0"`
	Delta     int    `json:"delta" validate:"required"`
	Code      string `json:"code" validate:"max=64"`
	Note      string `json:"note" validate:"max=500"`
}

var (
	// ErrNegativeStock is returned when a movement would leave less stock than is reserved.
	ErrNegativeStock = fmt.Errorf("%w: inventory: stock cannot drop below reserved quantity", shared.ErrConflict)
	// ErrInvalidQuantity indicates a zero adjustment.
	ErrInvalidQuantity = fmt.Errorf("%w: inventory: quantity must be non zero", shared.ErrValidation)
)
