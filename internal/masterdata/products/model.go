package products

import (
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
)

// Product is a frame, lens or accessory sold at the counter. Stock levels
// live per branch in inventory.
type Product struct {
	ID           int64     `json:"id" db:"id"`
	SKU          string    `json:"sku" db:"sku"`
	Name         string    `json:"name" db:"name"`
	PrimaryImage string    `json:"primary_image" db:"primary_image"`
	Price        float64   `json:"price" db:"price"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Summary returns the notification view of the product.
func (p Product) Summary() notify.Product {
	return notify.Product{ID: p.ID, Name: p.Name, SKU: p.SKU, Image: p.PrimaryImage}
}
