package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type VendorStore struct {
	db sqlx.ExtContext
}

const vendorColumns = `vendor_id, name, short_code, created_at, updated_at`

// FindByFragment returns the lowest-id vendor whose name or short code
// contains fragment, case-insensitively.
func (vs *VendorStore) FindByFragment(ctx context.Context, fragment string) (*Vendor, error) {
	query := `SELECT ` + vendorColumns + `
	FROM vendors
	WHERE name ILIKE $1 ESCAPE '\' OR short_code ILIKE $1 ESCAPE '\'
	ORDER BY vendor_id
	LIMIT 1`

	var v Vendor
	if err := sqlx.GetContext(ctx, vs.db, &v, query, ContainsPattern(fragment)); err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (vs *VendorStore) GetByID(ctx context.Context, id int64) (*Vendor, error) {
	var v Vendor
	err := sqlx.GetContext(ctx, vs.db, &v, `SELECT `+vendorColumns+` FROM vendors WHERE vendor_id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// Create inserts a vendor. A concurrent creation of the same name resolves
// to the existing row instead of failing.
func (vs *VendorStore) Create(ctx context.Context, vendor *Vendor) error {
	query := `INSERT INTO vendors (name, short_code)
	VALUES (:name, :short_code)
	ON CONFLICT (name) DO UPDATE SET
		short_code = COALESCE(vendors.short_code, EXCLUDED.short_code),
		updated_at = NOW()
	RETURNING ` + vendorColumns

	rows, err := sqlx.NamedQueryContext(ctx, vs.db, query, vendor)
	if err != nil {
		return fmt.Errorf("failed to insert vendor %q: %w", vendor.Name, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.StructScan(vendor); err != nil {
			return err
		}
	}
	return rows.Err()
}
