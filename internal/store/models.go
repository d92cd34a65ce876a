package store

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Product sources.
const (
	SourceInternal = "internal"
	SourceAWG      = "awg"
	SourceInvoice  = "invoice"
	SourceManual   = "manual"
	SourcePromo    = "promo"
)

// Invoice payment statuses.
const (
	StatusPending     = "pending"
	StatusNeedsReview = "needs_review"
	StatusPaid        = "paid"
	StatusDisputed    = "disputed"
	StatusReceived    = "received"
)

// Vendor represents the 'vendors' table.
type Vendor struct {
	ID        int64     `db:"vendor_id" json:"vendor_id"`
	Name      string    `db:"name" json:"name"`
	ShortCode *string   `db:"short_code" json:"short_code,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Product represents the 'products' table. UPC is stored in canonical form.
type Product struct {
	ID          int64     `db:"product_id" json:"product_id"`
	UPC         *string   `db:"upc" json:"upc,omitempty"`
	ItemCode    *string   `db:"item_code" json:"item_code,omitempty"`
	Description string    `db:"description" json:"description"`
	VendorID    *int64    `db:"vendor_id" json:"vendor_id,omitempty"`
	PackSize    *string   `db:"pack_size" json:"pack_size,omitempty"`
	Category    *string   `db:"category" json:"category,omitempty"`
	Source      string    `db:"source" json:"source"`
	Verified    bool      `db:"verified" json:"verified"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PriceEntry represents one row of 'price_history'.
type PriceEntry struct {
	ID              int64               `db:"price_id" json:"price_id"`
	ProductID       int64               `db:"product_id" json:"product_id"`
	EffectiveDate   time.Time           `db:"effective_date" json:"effective_date"`
	UnitCost        decimal.Decimal     `db:"unit_cost" json:"unit_cost"`
	PreviousCost    decimal.NullDecimal `db:"previous_cost" json:"previous_cost"`
	ChangePct       decimal.NullDecimal `db:"change_pct" json:"change_pct"`
	SourceInvoiceID *int64              `db:"source_invoice_id" json:"source_invoice_id,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
}

// Invoice represents the 'invoices' table.
type Invoice struct {
	ID             int64           `db:"invoice_id" json:"invoice_id"`
	InvoiceNumber  string          `db:"invoice_number" json:"invoice_number"`
	VendorID       int64           `db:"vendor_id" json:"vendor_id"`
	InvoiceDate    time.Time       `db:"invoice_date" json:"invoice_date"`
	ReceivedDate   time.Time       `db:"received_date" json:"received_date"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax            decimal.Decimal `db:"tax" json:"tax"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	PromoCredits   decimal.Decimal `db:"promo_credits" json:"promo_credits"`
	NetAmount      decimal.Decimal `db:"net_amount" json:"net_amount"`
	PaymentStatus  string          `db:"payment_status" json:"payment_status"`
	Notes          *string         `db:"notes" json:"notes,omitempty"`
	BlobURL        *string         `db:"blob_url" json:"blob_url,omitempty"`
	ScanFilename   *string         `db:"scan_filename" json:"scan_filename,omitempty"`
	ReceivingAudit types.JSONText  `db:"receiving_audit" json:"receiving_audit,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// InvoiceLine represents the 'invoice_lines' table.
type InvoiceLine struct {
	ID              int64           `db:"line_id" json:"line_id"`
	InvoiceID       int64           `db:"invoice_id" json:"invoice_id"`
	ProductID       *int64          `db:"product_id" json:"product_id,omitempty"`
	LineNumber      int             `db:"line_number" json:"line_number"`
	UPC             *string         `db:"upc" json:"upc,omitempty"`
	ItemCode        *string         `db:"item_code" json:"item_code,omitempty"`
	Description     string          `db:"description" json:"description"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	UnitCost        decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	ExtendedCost    decimal.Decimal `db:"extended_cost" json:"extended_cost"`
	DiscrepancyType *string         `db:"discrepancy_type" json:"discrepancy_type,omitempty"`
	LineStatus      *string         `db:"line_status" json:"line_status,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// InvoiceSummary is a row of the approval queue.
type InvoiceSummary struct {
	ID            int64           `db:"invoice_id" json:"invoice_id"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	InvoiceDate   time.Time       `db:"invoice_date" json:"invoice_date"`
	ReceivedDate  time.Time       `db:"received_date" json:"received_date"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaymentStatus string          `db:"payment_status" json:"payment_status"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	BlobURL       *string         `db:"blob_url" json:"blob_url,omitempty"`
	VendorName    *string         `db:"vendor_name" json:"vendor_name,omitempty"`
	VendorCode    *string         `db:"vendor_code" json:"vendor_code,omitempty"`
	LineCount     int             `db:"line_count" json:"line_count"`
}

// DashboardStats summarizes recent receiving activity.
type DashboardStats struct {
	WeeklyInvoices   int             `db:"weekly_invoices" json:"weekly_invoices"`
	PendingApprovals int             `db:"pending_approvals" json:"pending_approvals"`
	MonthlyProcessed decimal.Decimal `db:"monthly_processed" json:"monthly_processed"`
	ActiveVendors    int             `db:"active_vendors" json:"active_vendors"`
}

// CatalogItem represents the 'awg_catalog' table.
type CatalogItem struct {
	ID          int64               `db:"awg_id" json:"awg_id"`
	UPC         string              `db:"upc" json:"upc"`
	ItemNumber  string              `db:"item_number" json:"item_number"`
	Description string              `db:"description" json:"description"`
	Brand       *string             `db:"brand" json:"brand,omitempty"`
	VendorName  *string             `db:"vendor_name" json:"vendor_name,omitempty"`
	PackSize    *string             `db:"pack_size" json:"pack_size,omitempty"`
	CaseCost    decimal.NullDecimal `db:"case_cost" json:"case_cost"`
	Category    *string             `db:"category" json:"category,omitempty"`
	Subcategory *string             `db:"subcategory" json:"subcategory,omitempty"`
	Department  *string             `db:"department" json:"department,omitempty"`
	IsDSD       bool                `db:"is_dsd" json:"is_dsd"`
	VendorID    *int64              `db:"vendor_id" json:"vendor_id,omitempty"`
	LastSynced  time.Time           `db:"last_synced" json:"last_synced"`
}

// CatalogMatch is a catalog row joined with its linked vendor, if any.
type CatalogMatch struct {
	CatalogItem
	LinkedVendorName *string `db:"linked_vendor_name" json:"linked_vendor_name,omitempty"`
	LinkedVendorCode *string `db:"linked_vendor_code" json:"linked_vendor_code,omitempty"`
}

// CatalogImport represents the 'catalog_imports' table.
type CatalogImport struct {
	ID          int64     `db:"import_id" json:"import_id"`
	Source      string    `db:"source" json:"source"`
	SourceFile  string    `db:"source_file" json:"source_file"`
	TriggerType string    `db:"trigger_type" json:"trigger_type"`
	Status      string    `db:"status" json:"status"`
	Imported    int       `db:"imported" json:"imported"`
	Skipped     int       `db:"skipped" json:"skipped"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}
