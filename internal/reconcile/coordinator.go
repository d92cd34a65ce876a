package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/farxc/dsd_reconciler/internal/logger"
	"github.com/farxc/dsd_reconciler/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/farxc/dsd_reconciler/internal/reconcile")

// Verification decisions a reviewer may send along with a submission.
const (
	DecisionVerified = "verified"
	DecisionFlagged  = "flagged"
	DecisionRejected = "rejected"
)

// Approval actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// UnitOfWork runs fn against stores sharing one transaction.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(tx *store.Storage) error) error
}

type invoiceQueue interface {
	SetPaymentStatus(ctx context.Context, invoiceID int64, status string, notes *string) error
	ListByStatus(ctx context.Context, status string, limit int) ([]store.InvoiceSummary, error)
}

type InvoiceHeader struct {
	InvoiceNumber string          `json:"invoice_number" validate:"required,max=100"`
	InvoiceDate   string          `json:"invoice_date" validate:"omitempty,datetime=2006-01-02"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Notes         string          `json:"notes,omitempty"`
	BlobURL       string          `json:"blob_url,omitempty" validate:"omitempty,url"`
	Filename      string          `json:"filename,omitempty"`
}

// Submission is one delivery handed over for reconciliation.
type Submission struct {
	VendorName            string        `json:"vendor_name" validate:"required,max=200"`
	Invoice               InvoiceHeader `json:"invoice"`
	LineItems             []LineItem    `json:"line_items" validate:"required,min=1,dive"`
	Decision              string        `json:"verification_decision,omitempty" validate:"omitempty,oneof=verified flagged rejected"`
	Mode                  string        `json:"mode,omitempty" validate:"omitempty,oneof=invoice-first scan-first document"`
	Source                string        `json:"source,omitempty" validate:"omitempty,oneof=invoice manual promo"`
	Scans                 []ScanEvent   `json:"scans,omitempty"`
	Adjustments           []Adjustment  `json:"adjustments,omitempty"`
	MarkRemainingVerified bool          `json:"mark_remaining_verified,omitempty"`
}

type SubmissionSummary struct {
	Summary
	VerificationStatus string `json:"verification_status"`
	PaymentStatus      string `json:"payment_status"`
}

type ReceivingReport struct {
	SessionID string          `json:"session_id"`
	Stats     ReceivingStats  `json:"stats"`
	Lines     []LineState     `json:"lines"`
	Unmatched []UnmatchedScan `json:"not_on_invoice"`
}

type SubmissionResult struct {
	InvoiceID      int64             `json:"invoice_id"`
	VendorID       int64             `json:"vendor_id"`
	VendorCreated  bool              `json:"vendor_created"`
	InvoiceCreated bool              `json:"invoice_created"`
	ReplacedLines  int64             `json:"replaced_lines"`
	PriceChanges   int               `json:"price_changes"`
	Lines          []Outcome         `json:"lines"`
	Summary        SubmissionSummary `json:"summary"`
	Receiving      *ReceivingReport  `json:"receiving,omitempty"`
	NeedsReview    bool              `json:"needs_review"`
}

// Coordinator persists submissions and drives resolution, verification,
// quantity reconciliation and ledger updates inside one transaction.
type Coordinator struct {
	uow          UnitOfWork
	invoices     invoiceQueue
	logger       *logger.Logger
	descriptions Matcher
	vendors      Matcher
	now          func() time.Time
}

func NewCoordinator(uow UnitOfWork, invoices invoiceQueue, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Discard()
	}
	return &Coordinator{
		uow:          uow,
		invoices:     invoices,
		logger:       log,
		descriptions: DefaultDescriptionMatcher,
		vendors:      DefaultVendorMatcher,
		now:          time.Now,
	}
}

func (s *Submission) normalize() {
	s.VendorName = strings.TrimSpace(s.VendorName)
	s.Invoice.InvoiceNumber = strings.TrimSpace(s.Invoice.InvoiceNumber)
	s.Invoice.InvoiceDate = strings.TrimSpace(s.Invoice.InvoiceDate)
	if s.Mode == "" {
		s.Mode = ModeDocument
	}
	if s.Source == "" {
		s.Source = store.SourceInvoice
	}
	for i := range s.LineItems {
		if s.LineItems[i].LineNumber == 0 {
			s.LineItems[i].LineNumber = i + 1
		}
	}
}

// Submit reconciles and stores a delivery. Resubmitting the same vendor and
// invoice number replaces the stored header and lines.
func (c *Coordinator) Submit(ctx context.Context, sub Submission) (result *SubmissionResult, err error) {
	ctx, span := tracer.Start(ctx, "reconcile.Submit")
	defer func() { endSpan(span, err) }()

	sub.normalize()
	if err := validateStruct(sub); err != nil {
		return nil, err
	}

	invoiceDate := dateOnly(c.now())
	if sub.Invoice.InvoiceDate != "" {
		invoiceDate, _ = time.Parse(time.DateOnly, sub.Invoice.InvoiceDate)
	}

	span.SetAttributes(
		attribute.String("invoice.number", sub.Invoice.InvoiceNumber),
		attribute.String("receiving.mode", sub.Mode),
		attribute.Int("invoice.lines", len(sub.LineItems)),
	)

	var session *Session
	if sub.Mode == ModeInvoiceFirst {
		session, err = Replay(ExpectedLines(sub.LineItems), sub.Scans, sub.Adjustments, sub.MarkRemainingVerified)
		if err != nil {
			return nil, err
		}
		session.Close()
	}

	err = c.uow.WithTx(ctx, func(tx *store.Storage) error {
		var txErr error
		result, txErr = c.submit(ctx, tx, sub, invoiceDate, session)
		return txErr
	})
	if err != nil {
		c.logger.Error("COORDINATOR", "submission of invoice %s from %q failed: %v", sub.Invoice.InvoiceNumber, sub.VendorName, err)
		return nil, err
	}

	c.logger.Info("COORDINATOR", "invoice %s (id %d) stored as %s: %d lines, %d unmatched, %d discrepancies, %d price changes",
		sub.Invoice.InvoiceNumber, result.InvoiceID, result.Summary.PaymentStatus,
		result.Summary.TotalLines, result.Summary.UnmatchedLines, result.Summary.Discrepancies, result.PriceChanges)
	return result, nil
}

type ledgerWrite struct {
	productID int64
	unitCost  decimal.Decimal
}

func (c *Coordinator) submit(ctx context.Context, tx *store.Storage, sub Submission, invoiceDate time.Time, session *Session) (*SubmissionResult, error) {
	vendor, vendorCreated, err := NewVendorResolver(tx.Vendors, c.vendors).Resolve(ctx, sub.VendorName)
	if err != nil {
		return nil, err
	}

	invoice := buildInvoice(sub, vendor.ID, invoiceDate, dateOnly(c.now()))
	invoiceCreated, err := tx.Invoices.Upsert(ctx, invoice)
	if err != nil {
		return nil, err
	}

	replaced, err := tx.Invoices.DeleteLines(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}

	resolver := NewResolver(tx.Products, c.descriptions)
	ledger := NewLedger(tx.Prices, tx.Products)

	outcomes := make([]Outcome, len(sub.LineItems))
	var writes []ledgerWrite

	for i, line := range sub.LineItems {
		res, err := resolver.Resolve(ctx, Identifier{
			ProductID:   line.ProductID,
			UPC:         line.UPC,
			ItemCode:    line.ItemCode,
			Description: line.Description,
			VendorID:    &vendor.ID,
			Source:      sub.Source,
		})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line.LineNumber, err)
		}

		var current *store.PriceEntry
		if res.Found() {
			if current, err = ledger.CurrentPrice(ctx, res.Product.ID); err != nil {
				return nil, fmt.Errorf("line %d: %w", line.LineNumber, err)
			}
			if line.UnitPrice.IsPositive() {
				writes = append(writes, ledgerWrite{productID: res.Product.ID, unitCost: line.UnitPrice})
			}
		}

		outcomes[i] = Verify(line, res.Product, current)
		outcomes[i].ResolvedBy = res.By
		if session != nil {
			if ls, ok := session.Line(line.LineNumber); ok {
				outcomes[i].LineStatus = ls.Status
			}
		}

		if err := tx.Invoices.InsertLine(ctx, buildLine(invoice.ID, line, outcomes[i])); err != nil {
			return nil, err
		}
	}

	// Rows are locked in product id order so concurrent submissions touching
	// the same products cannot deadlock.
	sort.SliceStable(writes, func(i, j int) bool { return writes[i].productID < writes[j].productID })
	priceChanges := 0
	for _, w := range writes {
		entry, err := ledger.Record(ctx, w.productID, invoiceDate, w.unitCost, &invoice.ID)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			priceChanges++
		}
	}

	summary := Summarize(outcomes)
	status := DeriveStatus(sub.Decision, sub.Mode, summary, session)
	needsReview := status == store.StatusNeedsReview

	result := &SubmissionResult{
		InvoiceID:      invoice.ID,
		VendorID:       vendor.ID,
		VendorCreated:  vendorCreated,
		InvoiceCreated: invoiceCreated,
		ReplacedLines:  replaced,
		PriceChanges:   priceChanges,
		Lines:          outcomes,
		Summary: SubmissionSummary{
			Summary:            summary,
			VerificationStatus: verificationStatus(sub.Decision, summary),
			PaymentStatus:      status,
		},
		NeedsReview: needsReview,
	}
	if session != nil {
		result.Receiving = &ReceivingReport{
			SessionID: uuid.NewString(),
			Stats:     session.Stats(),
			Lines:     session.Lines(),
			Unmatched: session.Unmatched(),
		}
	}

	audit, err := buildAudit(sub, summary, result.Receiving, session, c.now())
	if err != nil {
		return nil, err
	}
	if err := tx.Invoices.Finalize(ctx, invoice.ID, status, buildNotes(sub.Invoice.Notes, result.Receiving), audit); err != nil {
		return nil, err
	}
	return result, nil
}

// DeriveStatus picks the stored payment status. An explicit reviewer
// decision wins; otherwise invoice-first receiving decides on quantities and
// every other mode on price verification.
func DeriveStatus(decision, mode string, summary Summary, session *Session) string {
	switch decision {
	case DecisionVerified:
		return store.StatusPending
	case DecisionFlagged:
		return store.StatusNeedsReview
	case DecisionRejected:
		return store.StatusDisputed
	}

	if mode == ModeInvoiceFirst && session != nil {
		if session.NeedsReview() {
			return store.StatusNeedsReview
		}
		return store.StatusReceived
	}

	if summary.HasIssues {
		return store.StatusNeedsReview
	}
	return store.StatusPending
}

func verificationStatus(decision string, summary Summary) string {
	if decision != "" {
		return decision
	}
	if summary.HasIssues {
		return DecisionFlagged
	}
	return DecisionVerified
}

func buildInvoice(sub Submission, vendorID int64, invoiceDate, receivedDate time.Time) *store.Invoice {
	h := sub.Invoice
	subtotal := h.Subtotal
	if subtotal.IsZero() {
		subtotal = h.Total
	}

	inv := &store.Invoice{
		InvoiceNumber: h.InvoiceNumber,
		VendorID:      vendorID,
		InvoiceDate:   invoiceDate,
		ReceivedDate:  receivedDate,
		Subtotal:      subtotal,
		Tax:           h.Tax,
		TotalAmount:   h.Total,
		PromoCredits:  decimal.Zero,
		NetAmount:     h.Total,
		PaymentStatus: store.StatusPending,
	}
	if v := strings.TrimSpace(h.BlobURL); v != "" {
		inv.BlobURL = &v
	}
	if v := strings.TrimSpace(h.Filename); v != "" {
		inv.ScanFilename = &v
	}
	return inv
}

func buildLine(invoiceID int64, line LineItem, out Outcome) *store.InvoiceLine {
	extended := line.Amount
	if extended.IsZero() {
		extended = line.Quantity.Mul(line.UnitPrice)
	}

	dt := out.DiscrepancyType
	il := &store.InvoiceLine{
		InvoiceID:       invoiceID,
		ProductID:       out.ProductID,
		LineNumber:      line.LineNumber,
		Description:     strings.TrimSpace(line.Description),
		Quantity:        line.Quantity,
		UnitCost:        line.UnitPrice,
		ExtendedCost:    extended,
		DiscrepancyType: &dt,
	}
	if upc := NormalizeUPC(line.UPC); upc != "" {
		il.UPC = &upc
	}
	if code := strings.TrimSpace(line.ItemCode); code != "" {
		il.ItemCode = &code
	}
	if out.LineStatus != "" {
		status := out.LineStatus
		il.LineStatus = &status
	}
	return il
}

type receivingAudit struct {
	SessionID   string          `json:"session_id,omitempty"`
	Mode        string          `json:"mode"`
	Decision    string          `json:"verification_decision,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	Scans       []ScanEvent     `json:"scans"`
	Adjustments []Adjustment    `json:"adjustments,omitempty"`
	Stats       *ReceivingStats `json:"stats,omitempty"`
	Unmatched   []UnmatchedScan `json:"not_on_invoice,omitempty"`
	Summary     Summary         `json:"summary"`
}

func buildAudit(sub Submission, summary Summary, report *ReceivingReport, session *Session, now time.Time) ([]byte, error) {
	audit := receivingAudit{
		Mode:        sub.Mode,
		Decision:    sub.Decision,
		SubmittedAt: now.UTC(),
		Scans:       sub.Scans,
		Adjustments: sub.Adjustments,
		Summary:     summary,
	}
	if session != nil && report != nil {
		audit.SessionID = report.SessionID
		audit.Scans = session.Scans()
		audit.Stats = &report.Stats
		audit.Unmatched = report.Unmatched
	}
	if audit.Scans == nil {
		audit.Scans = []ScanEvent{}
	}

	data, err := json.Marshal(audit)
	if err != nil {
		return nil, fmt.Errorf("failed to encode receiving audit: %w", err)
	}
	return data, nil
}

func buildNotes(notes string, report *ReceivingReport) *string {
	notes = strings.TrimSpace(notes)
	if report != nil {
		st := report.Stats
		suffix := fmt.Sprintf("Stats: verified=%d short=%d over=%d missing=%d not_on_invoice=%d",
			st.Verified, st.Short, st.Over, st.Missing, st.NotOnInvoice)
		if notes == "" {
			notes = suffix
		} else {
			notes += "\n" + suffix
		}
	}
	if notes == "" {
		return nil
	}
	return &notes
}

// Approval is a reviewer's verdict on a stored invoice.
type Approval struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Notes  string `json:"notes,omitempty"`
}

// Approve moves an invoice to paid or disputed and returns the new status.
func (c *Coordinator) Approve(ctx context.Context, invoiceID int64, a Approval) (string, error) {
	a.Action = strings.ToLower(strings.TrimSpace(a.Action))
	if err := validateStruct(a); err != nil {
		return "", err
	}

	status := store.StatusPaid
	if a.Action == ActionReject {
		status = store.StatusDisputed
	}

	var notes *string
	if n := strings.TrimSpace(a.Notes); n != "" {
		notes = &n
	}

	if err := c.invoices.SetPaymentStatus(ctx, invoiceID, status, notes); err != nil {
		return "", err
	}
	c.logger.Info("COORDINATOR", "invoice %d marked %s by %s action", invoiceID, status, a.Action)
	return status, nil
}

// DefaultQueueLimit caps approval queue listings.
const DefaultQueueLimit = 50

// Pending lists invoices awaiting review. An empty status means pending.
func (c *Coordinator) Pending(ctx context.Context, status string, limit int) ([]store.InvoiceSummary, error) {
	switch status {
	case "":
		status = store.StatusPending
	case store.StatusPending, store.StatusNeedsReview, store.StatusPaid, store.StatusDisputed, store.StatusReceived:
	default:
		return nil, &ValidationError{Fields: map[string]string{"status": "oneof"}}
	}
	if limit <= 0 || limit > 500 {
		limit = DefaultQueueLimit
	}
	return c.invoices.ListByStatus(ctx, status, limit)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
