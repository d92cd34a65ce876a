package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type CatalogStore struct {
	db sqlx.ExtContext
}

// FindByUPCs returns the best catalog row for any of the UPC forms: DSD
// items first, then rows already linked to one of our vendors.
func (cs *CatalogStore) FindByUPCs(ctx context.Context, upcs []string) (*CatalogMatch, error) {
	if len(upcs) == 0 {
		return nil, ErrNotFound
	}
	query := `
	SELECT
		a.awg_id,
		a.upc,
		a.item_number,
		a.description,
		a.brand,
		a.vendor_name,
		a.pack_size,
		a.case_cost,
		a.category,
		a.subcategory,
		a.department,
		a.is_dsd,
		a.vendor_id,
		a.last_synced,
		v.name AS linked_vendor_name,
		v.short_code AS linked_vendor_code
	FROM awg_catalog a
	LEFT JOIN vendors v ON a.vendor_id = v.vendor_id
	WHERE a.upc = ANY($1)
	ORDER BY a.is_dsd DESC, a.vendor_id IS NOT NULL DESC, a.awg_id
	LIMIT 1`

	var m CatalogMatch
	if err := sqlx.GetContext(ctx, cs.db, &m, query, pq.Array(upcs)); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (cs *CatalogStore) Upsert(ctx context.Context, item *CatalogItem) error {
	query := `INSERT INTO awg_catalog (
		upc,
		item_number,
		description,
		brand,
		vendor_name,
		pack_size,
		case_cost,
		category,
		subcategory,
		department,
		is_dsd,
		last_synced
	) VALUES (
		:upc,
		:item_number,
		:description,
		:brand,
		:vendor_name,
		:pack_size,
		:case_cost,
		:category,
		:subcategory,
		:department,
		:is_dsd,
		NOW()
	)
	ON CONFLICT (upc, item_number) DO UPDATE SET
		description = EXCLUDED.description,
		brand = EXCLUDED.brand,
		vendor_name = EXCLUDED.vendor_name,
		pack_size = EXCLUDED.pack_size,
		case_cost = EXCLUDED.case_cost,
		category = EXCLUDED.category,
		subcategory = EXCLUDED.subcategory,
		department = EXCLUDED.department,
		is_dsd = EXCLUDED.is_dsd,
		last_synced = NOW()
	RETURNING awg_id, vendor_id, last_synced`

	rows, err := sqlx.NamedQueryContext(ctx, cs.db, query, item)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog item %s: %w", item.UPC, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&item.ID, &item.VendorID, &item.LastSynced); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LinkVendors attaches unlinked catalog rows to vendors whose name or short
// code appears in the catalog vendor name or brand.
func (cs *CatalogStore) LinkVendors(ctx context.Context) (int64, int64, error) {
	link := `
	UPDATE awg_catalog a
	SET vendor_id = v.vendor_id
	FROM vendors v
	WHERE a.vendor_id IS NULL
		AND (
			LOWER(a.vendor_name) LIKE '%' || LOWER(v.name) || '%'
			OR (v.short_code IS NOT NULL AND LOWER(a.vendor_name) LIKE '%' || LOWER(v.short_code) || '%')
			OR LOWER(a.brand) LIKE '%' || LOWER(v.name) || '%'
		)`
	if _, err := cs.db.ExecContext(ctx, link); err != nil {
		return 0, 0, fmt.Errorf("failed to link catalog vendors: %w", err)
	}

	var counts struct {
		Matched   int64 `db:"matched"`
		Unmatched int64 `db:"unmatched"`
	}
	query := `
	SELECT
		COUNT(*) FILTER (WHERE vendor_id IS NOT NULL) AS matched,
		COUNT(*) FILTER (WHERE vendor_id IS NULL) AS unmatched
	FROM awg_catalog`
	if err := sqlx.GetContext(ctx, cs.db, &counts, query); err != nil {
		return 0, 0, fmt.Errorf("failed to count catalog linkage: %w", err)
	}
	return counts.Matched, counts.Unmatched, nil
}
