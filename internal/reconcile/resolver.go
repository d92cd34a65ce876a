package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/farxc/dsd_reconciler/internal/store"
)

// How a Resolution was reached.
const (
	ResolvedByProductID   = "product_id"
	ResolvedByUPC         = "upc"
	ResolvedByItemCode    = "item_code"
	ResolvedByDescription = "description"
	ResolvedByCreated     = "created"
)

// Identifier carries whatever an invoice line offers to identify a product.
// ProductID is set when an earlier price check already matched the line.
type Identifier struct {
	ProductID   *int64
	UPC         string
	ItemCode    string
	Description string
	VendorID    *int64
	Source      string
}

func (id Identifier) usable() bool {
	return id.ProductID != nil ||
		NormalizeUPC(id.UPC) != "" ||
		strings.TrimSpace(id.ItemCode) != "" ||
		strings.TrimSpace(id.Description) != ""
}

// Resolution is the result of resolving an Identifier. Unresolved is set
// when the identifier carried nothing to search or create with.
type Resolution struct {
	Product    *store.Product
	By         string
	Created    bool
	Unresolved bool
}

func (r Resolution) Found() bool { return r.Product != nil }

// Resolver maps invoice line identifiers to canonical products.
type Resolver struct {
	products     productRepo
	descriptions Matcher
}

func NewResolver(products productRepo, descriptions Matcher) *Resolver {
	if descriptions == nil {
		descriptions = DefaultDescriptionMatcher
	}
	return &Resolver{products: products, descriptions: descriptions}
}

// Find applies the matching priority (UPC variants, vendor item code,
// description fragment) without ever creating a product.
func (r *Resolver) Find(ctx context.Context, id Identifier) (Resolution, error) {
	if !id.usable() {
		return Resolution{Unresolved: true}, nil
	}

	if id.ProductID != nil {
		p, err := r.products.GetByID(ctx, *id.ProductID)
		if hit, err := found(p, err); err != nil || hit {
			return Resolution{Product: p, By: ResolvedByProductID}, err
		}
	}

	if variants := UPCVariants(id.UPC); len(variants) > 0 {
		p, err := r.products.FindByUPCs(ctx, variants)
		if hit, err := found(p, err); err != nil || hit {
			return Resolution{Product: p, By: ResolvedByUPC}, err
		}
	}

	if code := strings.TrimSpace(id.ItemCode); code != "" && id.VendorID != nil {
		p, err := r.products.FindByItemCode(ctx, *id.VendorID, code)
		if hit, err := found(p, err); err != nil || hit {
			return Resolution{Product: p, By: ResolvedByItemCode}, err
		}
	}

	if fragment := r.descriptions.Pattern(id.Description); fragment != "" {
		p, err := r.products.FindByDescription(ctx, fragment, id.VendorID)
		if hit, err := found(p, err); err != nil || hit {
			return Resolution{Product: p, By: ResolvedByDescription}, err
		}
	}

	return Resolution{}, nil
}

// Resolve is Find followed by creation of a new product when nothing
// matched. UPC-bearing products are upserted on the canonical UPC so two
// concurrent creators end up with the same row.
func (r *Resolver) Resolve(ctx context.Context, id Identifier) (Resolution, error) {
	res, err := r.Find(ctx, id)
	if err != nil || res.Found() || res.Unresolved {
		return res, err
	}

	product := newProduct(id)
	if product.UPC != nil {
		err = r.products.UpsertByUPC(ctx, product, false)
	} else {
		err = r.products.Insert(ctx, product)
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to create product: %w", err)
	}

	return Resolution{Product: product, By: ResolvedByCreated, Created: true}, nil
}

func newProduct(id Identifier) *store.Product {
	source := id.Source
	switch source {
	case store.SourceManual, store.SourcePromo, store.SourceInvoice:
	default:
		source = store.SourceInvoice
	}

	p := &store.Product{
		Description: strings.TrimSpace(id.Description),
		VendorID:    id.VendorID,
		Source:      source,
	}
	if upc := CanonicalUPC(id.UPC); upc != "" {
		p.UPC = &upc
	}
	if code := strings.TrimSpace(id.ItemCode); code != "" {
		p.ItemCode = &code
	}

	if p.Description == "" {
		switch {
		case p.UPC != nil:
			p.Description = "UPC " + *p.UPC
		case p.ItemCode != nil:
			p.Description = "Item " + *p.ItemCode
		}
	}
	return p
}

// found folds ErrNotFound into a miss.
func found[T any](v *T, err error) (bool, error) {
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// ManualProduct is a product keyed in by a receiving associate for a
// barcode nothing else knew.
type ManualProduct struct {
	UPC         string `json:"upc" validate:"required"`
	Description string `json:"description" validate:"required,max=500"`
	ItemCode    string `json:"item_code,omitempty"`
	PackSize    string `json:"pack_size,omitempty"`
	Category    string `json:"category,omitempty"`
	VendorID    *int64 `json:"vendor_id,omitempty"`
	Source      string `json:"source,omitempty" validate:"omitempty,oneof=manual promo"`
}

// Register upserts a manually entered product on its canonical UPC,
// overwriting the stored descriptive fields.
func (r *Resolver) Register(ctx context.Context, mp ManualProduct) (*store.Product, error) {
	mp.Description = strings.TrimSpace(mp.Description)
	if err := validateStruct(mp); err != nil {
		return nil, err
	}
	upc := CanonicalUPC(mp.UPC)
	if upc == "" {
		return nil, &ValidationError{Fields: map[string]string{"upc": "numeric"}}
	}

	source := mp.Source
	if source == "" {
		source = store.SourceManual
	}
	p := &store.Product{
		UPC:         &upc,
		Description: mp.Description,
		VendorID:    mp.VendorID,
		Source:      source,
		ItemCode:    optional(mp.ItemCode),
		PackSize:    optional(mp.PackSize),
		Category:    optional(mp.Category),
	}
	if err := r.products.UpsertByUPC(ctx, p, true); err != nil {
		return nil, fmt.Errorf("failed to register product %s: %w", upc, err)
	}
	return p, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
