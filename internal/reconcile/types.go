package reconcile

import (
	"context"

	"github.com/farxc/dsd_reconciler/internal/store"
	"github.com/shopspring/decimal"
)

// LineItem is one extracted invoice line as submitted for reconciliation.
type LineItem struct {
	LineNumber  int             `json:"line_number" validate:"gte=0"`
	UPC         string          `json:"upc,omitempty"`
	ItemCode    string          `json:"item_code,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	ProductID   *int64          `json:"product_id,omitempty"`
}

// The stores below are the subsets of store.Storage each component needs.

type vendorRepo interface {
	FindByFragment(ctx context.Context, fragment string) (*store.Vendor, error)
	Create(ctx context.Context, vendor *store.Vendor) error
}

type productFinder interface {
	GetByID(ctx context.Context, id int64) (*store.Product, error)
	FindByUPCs(ctx context.Context, upcs []string) (*store.Product, error)
	FindByItemCode(ctx context.Context, vendorID int64, itemCode string) (*store.Product, error)
	FindByDescription(ctx context.Context, fragment string, vendorID *int64) (*store.Product, error)
}

type productRepo interface {
	productFinder
	Insert(ctx context.Context, product *store.Product) error
	UpsertByUPC(ctx context.Context, product *store.Product, overwrite bool) error
}

type productLocker interface {
	LockForUpdate(ctx context.Context, id int64) error
}

type priceRepo interface {
	Current(ctx context.Context, productID int64) (*store.PriceEntry, error)
	Insert(ctx context.Context, entry *store.PriceEntry) error
}

type catalogFinder interface {
	FindByUPCs(ctx context.Context, upcs []string) (*store.CatalogMatch, error)
}
