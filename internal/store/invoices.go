package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type InvoiceStore struct {
	db sqlx.ExtContext
}

const invoiceColumns = `invoice_id, invoice_number, vendor_id, invoice_date, received_date, subtotal, tax,
	total_amount, promo_credits, net_amount, payment_status, notes, blob_url, scan_filename,
	receiving_audit, created_at, updated_at`

// Upsert writes the header keyed by (vendor_id, invoice_number). On conflict
// the mutable fields are replaced, except blob_url and scan_filename which
// keep their stored value when the new submission has none.
func (is *InvoiceStore) Upsert(ctx context.Context, invoice *Invoice) (bool, error) {
	query := `INSERT INTO invoices (
		invoice_number,
		vendor_id,
		invoice_date,
		received_date,
		subtotal,
		tax,
		total_amount,
		promo_credits,
		net_amount,
		payment_status,
		notes,
		blob_url,
		scan_filename
	) VALUES (
		:invoice_number,
		:vendor_id,
		:invoice_date,
		:received_date,
		:subtotal,
		:tax,
		:total_amount,
		:promo_credits,
		:net_amount,
		:payment_status,
		:notes,
		:blob_url,
		:scan_filename
	)
	ON CONFLICT (vendor_id, invoice_number) DO UPDATE SET
		invoice_date = EXCLUDED.invoice_date,
		received_date = EXCLUDED.received_date,
		subtotal = EXCLUDED.subtotal,
		tax = EXCLUDED.tax,
		total_amount = EXCLUDED.total_amount,
		promo_credits = EXCLUDED.promo_credits,
		net_amount = EXCLUDED.net_amount,
		payment_status = EXCLUDED.payment_status,
		notes = EXCLUDED.notes,
		blob_url = COALESCE(EXCLUDED.blob_url, invoices.blob_url),
		scan_filename = COALESCE(EXCLUDED.scan_filename, invoices.scan_filename),
		updated_at = NOW()
	RETURNING invoice_id, blob_url, scan_filename, created_at, updated_at, (xmax = 0) AS inserted`

	rows, err := sqlx.NamedQueryContext(ctx, is.db, query, invoice)
	if err != nil {
		return false, fmt.Errorf("failed to upsert invoice %s: %w", invoice.InvoiceNumber, err)
	}
	defer rows.Close()

	var inserted bool
	if rows.Next() {
		if err := rows.Scan(&invoice.ID, &invoice.BlobURL, &invoice.ScanFilename, &invoice.CreatedAt, &invoice.UpdatedAt, &inserted); err != nil {
			return false, err
		}
	}
	return inserted, rows.Err()
}

func (is *InvoiceStore) DeleteLines(ctx context.Context, invoiceID int64) (int64, error) {
	result, err := is.db.ExecContext(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete lines of invoice %d: %w", invoiceID, err)
	}
	return result.RowsAffected()
}

func (is *InvoiceStore) InsertLine(ctx context.Context, line *InvoiceLine) error {
	query := `INSERT INTO invoice_lines (
		invoice_id,
		product_id,
		line_number,
		upc,
		item_code,
		description,
		quantity,
		unit_cost,
		extended_cost,
		discrepancy_type,
		line_status
	) VALUES (
		:invoice_id,
		:product_id,
		:line_number,
		:upc,
		:item_code,
		:description,
		:quantity,
		:unit_cost,
		:extended_cost,
		:discrepancy_type,
		:line_status
	) RETURNING line_id, created_at`

	rows, err := sqlx.NamedQueryContext(ctx, is.db, query, line)
	if err != nil {
		return fmt.Errorf("failed to insert line %d of invoice %d: %w", line.LineNumber, line.InvoiceID, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&line.ID, &line.CreatedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Finalize stores the computed status, notes and receiving audit document.
func (is *InvoiceStore) Finalize(ctx context.Context, invoiceID int64, status string, notes *string, audit []byte) error {
	query := `UPDATE invoices
	SET payment_status = $1, notes = $2, receiving_audit = $3::JSONB, updated_at = NOW()
	WHERE invoice_id = $4`

	var auditArg any
	if len(audit) > 0 {
		auditArg = string(audit)
	}

	result, err := is.db.ExecContext(ctx, query, status, notes, auditArg, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to finalize invoice %d: %w", invoiceID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPaymentStatus moves an invoice through approval. notes, when non-nil,
// replaces the stored notes.
func (is *InvoiceStore) SetPaymentStatus(ctx context.Context, invoiceID int64, status string, notes *string) error {
	query := `UPDATE invoices
	SET payment_status = $1, notes = COALESCE($2, notes), updated_at = NOW()
	WHERE invoice_id = $3`

	result, err := is.db.ExecContext(ctx, query, status, notes, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to update invoice %d status: %w", invoiceID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (is *InvoiceStore) GetByID(ctx context.Context, invoiceID int64) (*Invoice, error) {
	var inv Invoice
	err := sqlx.GetContext(ctx, is.db, &inv, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (is *InvoiceStore) Lines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	query := `SELECT line_id, invoice_id, product_id, line_number, upc, item_code, description,
		quantity, unit_cost, extended_cost, discrepancy_type, line_status, created_at
	FROM invoice_lines
	WHERE invoice_id = $1
	ORDER BY line_number, line_id`

	lines := []InvoiceLine{}
	if err := sqlx.SelectContext(ctx, is.db, &lines, query, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to query lines of invoice %d: %w", invoiceID, err)
	}
	return lines, nil
}

// ListByStatus feeds the approval queue, newest deliveries first.
func (is *InvoiceStore) ListByStatus(ctx context.Context, status string, limit int) ([]InvoiceSummary, error) {
	query := `
	SELECT
		i.invoice_id,
		i.invoice_number,
		i.invoice_date,
		i.received_date,
		i.total_amount,
		i.payment_status,
		i.notes,
		i.blob_url,
		v.name AS vendor_name,
		v.short_code AS vendor_code,
		(SELECT COUNT(*) FROM invoice_lines l WHERE l.invoice_id = i.invoice_id) AS line_count
	FROM invoices i
	LEFT JOIN vendors v ON i.vendor_id = v.vendor_id
	WHERE i.payment_status = $1
	ORDER BY i.received_date DESC, i.invoice_id DESC
	LIMIT $2`

	out := []InvoiceSummary{}
	if err := sqlx.SelectContext(ctx, is.db, &out, query, status, limit); err != nil {
		return nil, fmt.Errorf("failed to query invoices by status: %w", err)
	}
	return out, nil
}

func (is *InvoiceStore) Stats(ctx context.Context) (DashboardStats, error) {
	query := `
	SELECT
		(SELECT COUNT(*) FROM invoices WHERE created_at >= NOW() - INTERVAL '7 days') AS weekly_invoices,
		(SELECT COUNT(*) FROM invoices WHERE payment_status IN ('pending', 'needs_review')) AS pending_approvals,
		(SELECT COALESCE(SUM(total_amount), 0) FROM invoices
			WHERE created_at >= DATE_TRUNC('month', NOW())
			AND payment_status NOT IN ('pending', 'needs_review')) AS monthly_processed,
		(SELECT COUNT(DISTINCT vendor_id) FROM invoices WHERE created_at >= NOW() - INTERVAL '30 days') AS active_vendors`

	var stats DashboardStats
	if err := sqlx.GetContext(ctx, is.db, &stats, query); err != nil {
		return DashboardStats{}, fmt.Errorf("failed to query dashboard stats: %w", err)
	}
	return stats, nil
}
