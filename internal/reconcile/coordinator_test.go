package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/farxc/dsd_reconciler/internal/logger"
	"github.com/farxc/dsd_reconciler/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type coordinatorFixture struct {
	db      *memDB
	c       *Coordinator
	vendor  store.Vendor
	doritos store.Product
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	db := newMemDB()
	vendor := db.addVendor("Frito-Lay Inc", "FRITO-LAY")
	doritos := db.addProduct(store.Product{UPC: ptr("028400090858"), Description: "DORITOS NACHO 9.25OZ", VendorID: &vendor.ID})
	db.addPrice(doritos.ID, day("2024-02-01"), "10.00")

	c := NewCoordinator(db, db.storage().Invoices, logger.Discard())
	c.now = func() time.Time { return time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC) }
	return &coordinatorFixture{db: db, c: c, vendor: vendor, doritos: doritos}
}

func doritosSubmission(price string) Submission {
	return Submission{
		VendorName: "FRITO-LAY NORTH AMERICA",
		Invoice: InvoiceHeader{
			InvoiceNumber: "INV-1001",
			InvoiceDate:   "2024-03-04",
			Total:         dec("102.50"),
			BlobURL:       "https://blob.example.com/scans/inv-1001.jpg",
		},
		LineItems: []LineItem{
			{UPC: "28400090858", Description: "DORITOS NACHO", Quantity: dec("10"), UnitPrice: dec(price)},
		},
	}
}

func TestSubmitPriceIncrease(t *testing.T) {
	f := newCoordinatorFixture(t)

	res, err := f.c.Submit(context.Background(), doritosSubmission("10.25"))
	require.NoError(t, err)

	assert.Equal(t, f.vendor.ID, res.VendorID)
	assert.False(t, res.VendorCreated)
	assert.True(t, res.InvoiceCreated)
	require.Len(t, res.Lines, 1)

	line := res.Lines[0]
	assert.Equal(t, DiscrepancyPriceIncrease, line.DiscrepancyType)
	assert.True(t, line.Matched)
	assert.True(t, line.Discrepancy.Difference.Equal(dec("0.25")))
	assert.True(t, line.Discrepancy.PercentChange.Equal(dec("2.5")))

	assert.Equal(t, 1, res.Summary.PriceIncreases)
	assert.True(t, res.Summary.HasIssues)
	assert.Equal(t, DecisionFlagged, res.Summary.VerificationStatus)
	assert.Equal(t, store.StatusNeedsReview, res.Summary.PaymentStatus)
	assert.True(t, res.NeedsReview)
	assert.Equal(t, 1, res.PriceChanges)

	entries := f.db.pricesOf(f.doritos.ID)
	require.Len(t, entries, 2)
	assert.True(t, entries[1].UnitCost.Equal(dec("10.25")))
	assert.Equal(t, day("2024-03-04"), entries[1].EffectiveDate)
	assert.Equal(t, res.InvoiceID, *entries[1].SourceInvoiceID)

	inv, ok := f.db.invoiceByID(res.InvoiceID)
	require.True(t, ok)
	assert.Equal(t, store.StatusNeedsReview, inv.PaymentStatus)
	assert.True(t, inv.PromoCredits.IsZero())
	assert.True(t, inv.NetAmount.Equal(dec("102.50")))
	assert.True(t, inv.Subtotal.Equal(dec("102.50")))
}

func TestSubmitUnknownProductIsUnmatchedAndCreated(t *testing.T) {
	f := newCoordinatorFixture(t)
	sub := doritosSubmission("10.00")
	sub.LineItems = []LineItem{{UPC: "012000171864", Description: "MTN DEW 20OZ", Quantity: dec("24"), UnitPrice: dec("1.10")}}

	res, err := f.c.Submit(context.Background(), sub)
	require.NoError(t, err)

	line := res.Lines[0]
	assert.False(t, line.Matched)
	assert.Equal(t, DiscrepancyUnmatched, line.DiscrepancyType)
	assert.Equal(t, ResolvedByCreated, line.ResolvedBy)
	require.NotNil(t, line.ProductID)
	assert.Equal(t, store.StatusNeedsReview, res.Summary.PaymentStatus)

	// The first observed price becomes the baseline for the next delivery.
	entries := f.db.pricesOf(*line.ProductID)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].UnitCost.Equal(dec("1.10")))

	lines := f.db.linesOf(res.InvoiceID)
	require.Len(t, lines, 1)
	assert.Equal(t, DiscrepancyUnmatched, *lines[0].DiscrepancyType)
	assert.True(t, lines[0].ExtendedCost.Equal(dec("26.4")))
}

func TestSubmitCleanInvoiceIsPending(t *testing.T) {
	f := newCoordinatorFixture(t)

	res, err := f.c.Submit(context.Background(), doritosSubmission("10.10"))
	require.NoError(t, err)
	assert.False(t, res.Summary.HasIssues)
	assert.Equal(t, store.StatusPending, res.Summary.PaymentStatus)
	assert.Equal(t, DecisionVerified, res.Summary.VerificationStatus)
	assert.False(t, res.NeedsReview)
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	first, err := f.c.Submit(ctx, doritosSubmission("10.25"))
	require.NoError(t, err)

	again := doritosSubmission("10.25")
	again.Invoice.BlobURL = ""
	second, err := f.c.Submit(ctx, again)
	require.NoError(t, err)

	assert.Equal(t, first.InvoiceID, second.InvoiceID)
	assert.False(t, second.InvoiceCreated)
	assert.Equal(t, int64(1), second.ReplacedLines)
	assert.Len(t, f.db.linesOf(first.InvoiceID), 1)
	assert.Len(t, f.db.pricesOf(f.doritos.ID), 2, "unchanged price is not recorded twice")
	assert.Zero(t, second.PriceChanges)

	inv, _ := f.db.invoiceByID(first.InvoiceID)
	require.NotNil(t, inv.BlobURL)
	assert.Equal(t, "https://blob.example.com/scans/inv-1001.jpg", *inv.BlobURL)
}

func TestSubmitValidation(t *testing.T) {
	f := newCoordinatorFixture(t)

	_, err := f.c.Submit(context.Background(), Submission{Invoice: InvoiceHeader{InvoiceDate: "03/04/2024"}})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "required", ve.Fields["vendor_name"])
	assert.Equal(t, "required", ve.Fields["invoice.invoice_number"])
	assert.Equal(t, "datetime", ve.Fields["invoice.invoice_date"])
	assert.Equal(t, "required", ve.Fields["line_items"])

	_, ok := f.db.invoiceByID(1000)
	assert.False(t, ok)
	assert.Len(t, f.db.vendors, 1)
}

func TestSubmitRollsBackOnStoreFailure(t *testing.T) {
	f := newCoordinatorFixture(t)
	boom := errors.New("disk full")
	f.db.failInsertLine = boom

	sub := doritosSubmission("10.25")
	sub.VendorName = "Pepsi Bottling"
	_, err := f.c.Submit(context.Background(), sub)
	require.ErrorIs(t, err, boom)

	assert.Len(t, f.db.vendors, 1)
	assert.Empty(t, f.db.invoices)
	assert.Len(t, f.db.pricesOf(f.doritos.ID), 1)
}

func TestSubmitDecisionPrecedence(t *testing.T) {
	tests := []struct {
		decision string
		want     string
	}{
		{DecisionVerified, store.StatusPending},
		{DecisionFlagged, store.StatusNeedsReview},
		{DecisionRejected, store.StatusDisputed},
	}
	for _, tt := range tests {
		t.Run(tt.decision, func(t *testing.T) {
			f := newCoordinatorFixture(t)
			sub := doritosSubmission("10.25")
			sub.Decision = tt.decision

			res, err := f.c.Submit(context.Background(), sub)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Summary.PaymentStatus)
			assert.Equal(t, tt.decision, res.Summary.VerificationStatus)
		})
	}
}

func TestSubmitInvoiceFirst(t *testing.T) {
	t.Run("all received", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		sub := doritosSubmission("10.25")
		sub.Mode = ModeInvoiceFirst
		sub.Scans = []ScanEvent{{Barcode: "028400090858", Quantity: 10}}

		res, err := f.c.Submit(context.Background(), sub)
		require.NoError(t, err)
		assert.Equal(t, store.StatusReceived, res.Summary.PaymentStatus)
		require.NotNil(t, res.Receiving)
		assert.Equal(t, 1, res.Receiving.Stats.Verified)
		assert.NotEmpty(t, res.Receiving.SessionID)
		assert.Equal(t, LineStatusVerified, res.Lines[0].LineStatus)

		inv, _ := f.db.invoiceByID(res.InvoiceID)
		var audit receivingAudit
		require.NoError(t, json.Unmarshal(inv.ReceivingAudit, &audit))
		assert.Equal(t, ModeInvoiceFirst, audit.Mode)
		require.Len(t, audit.Scans, 1)
		assert.Equal(t, 1, *audit.Scans[0].MatchedLineID)
		require.NotNil(t, inv.Notes)
		assert.Contains(t, *inv.Notes, "Stats: verified=1")
	})

	t.Run("short and not on invoice", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		sub := doritosSubmission("10.00")
		sub.Mode = ModeInvoiceFirst
		sub.Scans = []ScanEvent{{Barcode: "028400090858", Quantity: 9}, {Barcode: "777"}}

		res, err := f.c.Submit(context.Background(), sub)
		require.NoError(t, err)
		assert.Equal(t, store.StatusNeedsReview, res.Summary.PaymentStatus)
		assert.Equal(t, 1, res.Receiving.Stats.Short)
		assert.Equal(t, 1, res.Receiving.Stats.NotOnInvoice)

		lines := f.db.linesOf(res.InvoiceID)
		assert.Equal(t, LineStatusShort, *lines[0].LineStatus)
	})

	t.Run("unscanned lines are missing", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		sub := doritosSubmission("10.00")
		sub.Mode = ModeInvoiceFirst

		res, err := f.c.Submit(context.Background(), sub)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Receiving.Stats.Missing)
		assert.Equal(t, store.StatusNeedsReview, res.Summary.PaymentStatus)
	})

	t.Run("bad adjustment is rejected before writing", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		sub := doritosSubmission("10.00")
		sub.Mode = ModeInvoiceFirst
		sub.Adjustments = []Adjustment{{LineNumber: 5, Delta: 1}}

		_, err := f.c.Submit(context.Background(), sub)
		assert.True(t, IsValidation(err))
		assert.Empty(t, f.db.invoices)
	})
}

func TestSubmitScanFirstOnlyAudits(t *testing.T) {
	f := newCoordinatorFixture(t)
	sub := doritosSubmission("10.00")
	sub.Mode = ModeScanFirst
	sub.Scans = []ScanEvent{{Barcode: "777"}}

	res, err := f.c.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Nil(t, res.Receiving)
	assert.Equal(t, store.StatusPending, res.Summary.PaymentStatus)

	inv, _ := f.db.invoiceByID(res.InvoiceID)
	var audit receivingAudit
	require.NoError(t, json.Unmarshal(inv.ReceivingAudit, &audit))
	assert.Len(t, audit.Scans, 1)
	assert.Nil(t, inv.Notes)
}

func TestSubmitCreatesVendor(t *testing.T) {
	f := newCoordinatorFixture(t)
	sub := doritosSubmission("10.00")
	sub.VendorName = "Pepsi Bottling Group"

	res, err := f.c.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.True(t, res.VendorCreated)

	v, err := f.db.storage().Vendors.GetByID(context.Background(), res.VendorID)
	require.NoError(t, err)
	assert.Equal(t, "PEPSI BOTT", *v.ShortCode)
}

func TestSubmitLocksProductsInOrder(t *testing.T) {
	f := newCoordinatorFixture(t)
	low := f.db.addProduct(store.Product{UPC: ptr("111111111111"), Description: "LOW", VendorID: &f.vendor.ID})

	sub := doritosSubmission("10.00")
	sub.LineItems = []LineItem{
		{UPC: "028400090858", Quantity: dec("1"), UnitPrice: dec("11.00")},
		{UPC: "111111111111", Quantity: dec("1"), UnitPrice: dec("2.00")},
	}
	_, err := f.c.Submit(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, f.db.lockCalls, 2)
	assert.Equal(t, []int64{f.doritos.ID, low.ID}, f.db.lockCalls)
	assert.Less(t, f.doritos.ID, low.ID)
}

func TestApprove(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()
	res, err := f.c.Submit(ctx, doritosSubmission("10.25"))
	require.NoError(t, err)

	status, err := f.c.Approve(ctx, res.InvoiceID, Approval{Action: "Approve", Notes: "ok by manager"})
	require.NoError(t, err)
	assert.Equal(t, store.StatusPaid, status)

	status, err = f.c.Approve(ctx, res.InvoiceID, Approval{Action: ActionReject})
	require.NoError(t, err)
	assert.Equal(t, store.StatusDisputed, status)

	inv, _ := f.db.invoiceByID(res.InvoiceID)
	assert.Equal(t, "ok by manager", *inv.Notes)

	_, err = f.c.Approve(ctx, res.InvoiceID, Approval{Action: "archive"})
	assert.True(t, IsValidation(err))

	_, err = f.c.Approve(ctx, 9999, Approval{Action: ActionApprove})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPending(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()
	_, err := f.c.Submit(ctx, doritosSubmission("10.25"))
	require.NoError(t, err)

	queue, err := f.c.Pending(ctx, store.StatusNeedsReview, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "INV-1001", queue[0].InvoiceNumber)

	queue, err = f.c.Pending(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, queue)

	_, err = f.c.Pending(ctx, "lost", 10)
	assert.True(t, IsValidation(err))
}
