package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("record not found")

type Storage struct {
	Vendors interface {
		FindByFragment(ctx context.Context, fragment string) (*Vendor, error)
		GetByID(ctx context.Context, id int64) (*Vendor, error)
		Create(ctx context.Context, vendor *Vendor) error
	}

	Products interface {
		GetByID(ctx context.Context, id int64) (*Product, error)
		FindByUPCs(ctx context.Context, upcs []string) (*Product, error)
		FindByItemCode(ctx context.Context, vendorID int64, itemCode string) (*Product, error)
		FindByDescription(ctx context.Context, fragment string, vendorID *int64) (*Product, error)
		Insert(ctx context.Context, product *Product) error
		UpsertByUPC(ctx context.Context, product *Product, overwrite bool) error
		LockForUpdate(ctx context.Context, id int64) error
	}

	Prices interface {
		Current(ctx context.Context, productID int64) (*PriceEntry, error)
		Insert(ctx context.Context, entry *PriceEntry) error
		History(ctx context.Context, productID int64, limit int) ([]PriceEntry, error)
	}

	Invoices interface {
		Upsert(ctx context.Context, invoice *Invoice) (created bool, err error)
		DeleteLines(ctx context.Context, invoiceID int64) (int64, error)
		InsertLine(ctx context.Context, line *InvoiceLine) error
		Finalize(ctx context.Context, invoiceID int64, status string, notes *string, audit []byte) error
		SetPaymentStatus(ctx context.Context, invoiceID int64, status string, notes *string) error
		GetByID(ctx context.Context, invoiceID int64) (*Invoice, error)
		Lines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error)
		ListByStatus(ctx context.Context, status string, limit int) ([]InvoiceSummary, error)
		Stats(ctx context.Context) (DashboardStats, error)
	}

	Catalog interface {
		FindByUPCs(ctx context.Context, upcs []string) (*CatalogMatch, error)
		Upsert(ctx context.Context, item *CatalogItem) error
		LinkVendors(ctx context.Context) (matched, unmatched int64, err error)
	}

	CatalogImports interface {
		InsertCatalogImport(ctx context.Context, record *CatalogImport) error
		UpdateImportStatus(ctx context.Context, id int64, status string, imported, skipped int) error
		GetLatest(ctx context.Context, limit int) ([]CatalogImport, error)
	}

	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	s := newStorage(db)
	s.db = db
	return s
}

func newStorage(q sqlx.ExtContext) *Storage {
	return &Storage{
		Vendors:        &VendorStore{db: q},
		Products:       &ProductStore{db: q},
		Prices:         &PriceStore{db: q},
		Invoices:       &InvoiceStore{db: q},
		Catalog:        &CatalogStore{db: q},
		CatalogImports: &CatalogImportStore{db: q},
	}
}

// WithTx runs fn against stores bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Storage) WithTx(ctx context.Context, fn func(tx *Storage) error) (err error) {
	if s.db == nil {
		return errors.New("storage is not bound to a database")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(newStorage(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
