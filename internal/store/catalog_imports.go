package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type CatalogImportStore struct {
	db sqlx.ExtContext
}

var (
	TriggerTypeManual    = "manual"
	TriggerTypeScheduled = "scheduled"
	TriggerTypeAPI       = "api"
)

var (
	ImportStatusInProgress = "in_progress"
	ImportStatusSuccess    = "success"
	ImportStatusFailure    = "failure"
	ImportStatusPartial    = "partial"
)

func (cis *CatalogImportStore) InsertCatalogImport(ctx context.Context, record *CatalogImport) error {
	query := `INSERT INTO catalog_imports (
		source,
		source_file,
		trigger_type,
		status,
		imported,
		skipped
	) VALUES (
		:source,
		:source_file,
		:trigger_type,
		:status,
		:imported,
		:skipped
	) RETURNING import_id, processed_at`

	rows, err := sqlx.NamedQueryContext(ctx, cis.db, query, record)
	if err != nil {
		return err
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&record.ID, &record.ProcessedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (cis *CatalogImportStore) UpdateImportStatus(ctx context.Context, id int64, status string, imported, skipped int) error {
	query := `UPDATE catalog_imports
	SET status = $1, imported = $2, skipped = $3, processed_at = NOW()
	WHERE import_id = $4`

	result, err := cis.db.ExecContext(ctx, query, status, imported, skipped, id)
	if err != nil {
		return fmt.Errorf("failed to update catalog import %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (cis *CatalogImportStore) GetLatest(ctx context.Context, limit int) ([]CatalogImport, error) {
	query := `SELECT import_id, source, source_file, trigger_type, status, imported, skipped, processed_at
	FROM catalog_imports
	ORDER BY processed_at DESC
	LIMIT $1`

	out := []CatalogImport{}
	if err := sqlx.SelectContext(ctx, cis.db, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query catalog imports: %w", err)
	}
	return out, nil
}
