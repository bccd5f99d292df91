package app

import (
	"context"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/masterdata/branches"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/masterdata/products"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
)

// Catalog joins the product and branch master data into the summaries
// embedded in stock alerts.
type Catalog struct {
	Products *products.Service
	Branches *branches.Service
}

// ProductSummary implements inventory.Catalog.
func (c Catalog) ProductSummary(ctx context.Context, id int64) (notify.Product, error) {
	return c.Products.ProductSummary(ctx, id)
}

// BranchSummary implements inventory.Catalog.
func (c Catalog) BranchSummary(ctx context.Context, id int64) (notify.Branch, error) {
	return c.Branches.BranchSummary(ctx, id)
}
