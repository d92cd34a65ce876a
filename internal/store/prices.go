package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type PriceStore struct {
	db sqlx.ExtContext
}

const priceColumns = `price_id, product_id, effective_date, unit_cost, previous_cost, change_pct, source_invoice_id, created_at`

// Current returns the entry with the latest effective date. Entries sharing
// a date are ordered by insertion, so the last write wins.
func (ps *PriceStore) Current(ctx context.Context, productID int64) (*PriceEntry, error) {
	query := `SELECT ` + priceColumns + `
	FROM price_history
	WHERE product_id = $1
	ORDER BY effective_date DESC, price_id DESC
	LIMIT 1`

	var e PriceEntry
	if err := sqlx.GetContext(ctx, ps.db, &e, query, productID); err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (ps *PriceStore) Insert(ctx context.Context, entry *PriceEntry) error {
	query := `INSERT INTO price_history (
		product_id,
		effective_date,
		unit_cost,
		previous_cost,
		change_pct,
		source_invoice_id
	) VALUES (
		:product_id,
		:effective_date,
		:unit_cost,
		:previous_cost,
		:change_pct,
		:source_invoice_id
	) RETURNING price_id, created_at`

	rows, err := sqlx.NamedQueryContext(ctx, ps.db, query, entry)
	if err != nil {
		return fmt.Errorf("failed to insert price entry for product %d: %w", entry.ProductID, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&entry.ID, &entry.CreatedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (ps *PriceStore) History(ctx context.Context, productID int64, limit int) ([]PriceEntry, error) {
	query := `SELECT ` + priceColumns + `
	FROM price_history
	WHERE product_id = $1
	ORDER BY effective_date DESC, price_id DESC
	LIMIT $2`

	entries := []PriceEntry{}
	if err := sqlx.SelectContext(ctx, ps.db, &entries, query, productID, limit); err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	return entries, nil
}
