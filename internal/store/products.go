package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type ProductStore struct {
	db sqlx.ExtContext
}

const productColumns = `product_id, upc, item_code, description, vendor_id, pack_size, category, source, verified, created_at, updated_at`

func (ps *ProductStore) GetByID(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := sqlx.GetContext(ctx, ps.db, &p, `SELECT `+productColumns+` FROM products WHERE product_id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindByUPCs returns the first product whose UPC equals any of the given
// representations.
func (ps *ProductStore) FindByUPCs(ctx context.Context, upcs []string) (*Product, error) {
	if len(upcs) == 0 {
		return nil, ErrNotFound
	}
	query := `SELECT ` + productColumns + `
	FROM products
	WHERE upc = ANY($1)
	ORDER BY product_id
	LIMIT 1`

	var p Product
	if err := sqlx.GetContext(ctx, ps.db, &p, query, pq.Array(upcs)); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (ps *ProductStore) FindByItemCode(ctx context.Context, vendorID int64, itemCode string) (*Product, error) {
	query := `SELECT ` + productColumns + `
	FROM products
	WHERE vendor_id = $1 AND item_code = $2
	ORDER BY product_id
	LIMIT 1`

	var p Product
	if err := sqlx.GetContext(ctx, ps.db, &p, query, vendorID, itemCode); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindByDescription matches fragment as a case-insensitive substring of the
// description, scoped to vendorID when it is non-nil.
func (ps *ProductStore) FindByDescription(ctx context.Context, fragment string, vendorID *int64) (*Product, error) {
	query := `SELECT ` + productColumns + `
	FROM products
	WHERE description ILIKE $1 ESCAPE '\'
		AND ($2::BIGINT IS NULL OR vendor_id = $2)
	ORDER BY product_id
	LIMIT 1`

	var p Product
	if err := sqlx.GetContext(ctx, ps.db, &p, query, ContainsPattern(fragment), vendorID); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Insert creates a product without a uniqueness guard. Use UpsertByUPC when
// the product carries a UPC.
func (ps *ProductStore) Insert(ctx context.Context, product *Product) error {
	query := `INSERT INTO products (upc, item_code, description, vendor_id, pack_size, category, source, verified)
	VALUES (:upc, :item_code, :description, :vendor_id, :pack_size, :category, :source, :verified)
	RETURNING ` + productColumns

	return ps.namedReturning(ctx, query, product)
}

// UpsertByUPC inserts the product or, when its UPC already exists, returns
// the existing row. With overwrite the incoming non-null attributes replace
// the stored ones (catalog import and manual entry); without it only gaps in
// the stored row are filled (receiving).
func (ps *ProductStore) UpsertByUPC(ctx context.Context, product *Product, overwrite bool) error {
	if product.UPC == nil || *product.UPC == "" {
		return fmt.Errorf("upsert by upc requires a upc")
	}

	update := `item_code = COALESCE(products.item_code, EXCLUDED.item_code),
		vendor_id = COALESCE(products.vendor_id, EXCLUDED.vendor_id),
		updated_at = NOW()`
	if overwrite {
		update = `description = COALESCE(NULLIF(EXCLUDED.description, ''), products.description),
		item_code = COALESCE(EXCLUDED.item_code, products.item_code),
		vendor_id = COALESCE(EXCLUDED.vendor_id, products.vendor_id),
		pack_size = COALESCE(EXCLUDED.pack_size, products.pack_size),
		category = COALESCE(EXCLUDED.category, products.category),
		updated_at = NOW()`
	}

	query := `INSERT INTO products (upc, item_code, description, vendor_id, pack_size, category, source, verified)
	VALUES (:upc, :item_code, :description, :vendor_id, :pack_size, :category, :source, :verified)
	ON CONFLICT (upc) DO UPDATE SET
		` + update + `
	RETURNING ` + productColumns

	return ps.namedReturning(ctx, query, product)
}

// LockForUpdate takes a row lock on the product for the rest of the
// enclosing transaction. It serializes price ledger writes per product.
func (ps *ProductStore) LockForUpdate(ctx context.Context, id int64) error {
	var locked int64
	err := sqlx.GetContext(ctx, ps.db, &locked, `SELECT product_id FROM products WHERE product_id = $1 FOR UPDATE`, id)
	if err != nil {
		return notFound(err)
	}
	return nil
}

func (ps *ProductStore) namedReturning(ctx context.Context, query string, product *Product) error {
	rows, err := sqlx.NamedQueryContext(ctx, ps.db, query, product)
	if err != nil {
		return fmt.Errorf("failed to write product %q: %w", product.Description, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.StructScan(product); err != nil {
			return err
		}
	}
	return rows.Err()
}
