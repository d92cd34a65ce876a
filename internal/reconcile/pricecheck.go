package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/farxc/dsd_reconciler/internal/logger"
	"github.com/farxc/dsd_reconciler/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// DefaultPriceCheckConcurrency bounds the lines checked at once.
const DefaultPriceCheckConcurrency = 8

type PriceCheckRequest struct {
	VendorName string     `json:"vendor_name" validate:"required"`
	LineItems  []LineItem `json:"line_items" validate:"required,min=1,dive"`
}

type PriceCheckReport struct {
	Vendor  *store.Vendor `json:"vendor,omitempty"`
	Lines   []Outcome     `json:"lines"`
	Summary Summary       `json:"summary"`
}

// PriceChecker verifies invoice lines against the ledger without writing
// anything: vendors and products are looked up, never created.
type PriceChecker struct {
	vendors     *VendorResolver
	resolver    *Resolver
	ledger      *Ledger
	concurrency int
	logger      *logger.Logger
}

func NewPriceChecker(vendors vendorRepo, products productRepo, prices priceRepo, concurrency int, log *logger.Logger) *PriceChecker {
	if concurrency <= 0 {
		concurrency = DefaultPriceCheckConcurrency
	}
	if log == nil {
		log = logger.Discard()
	}
	return &PriceChecker{
		vendors:     NewVendorResolver(vendors, nil),
		resolver:    NewResolver(products, nil),
		ledger:      NewLedger(prices, nil),
		concurrency: concurrency,
		logger:      log,
	}
}

func (pc *PriceChecker) Check(ctx context.Context, req PriceCheckRequest) (report *PriceCheckReport, err error) {
	ctx, span := tracer.Start(ctx, "reconcile.PriceCheck")
	defer func() { endSpan(span, err) }()

	req.VendorName = strings.TrimSpace(req.VendorName)
	for i := range req.LineItems {
		if req.LineItems[i].LineNumber == 0 {
			req.LineItems[i].LineNumber = i + 1
		}
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("invoice.lines", len(req.LineItems)))

	vendor, err := pc.vendors.Find(ctx, req.VendorName)
	if err != nil {
		return nil, err
	}
	var vendorID *int64
	if vendor != nil {
		vendorID = &vendor.ID
	}

	outcomes := make([]Outcome, len(req.LineItems))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pc.concurrency)

	for i, line := range req.LineItems {
		g.Go(func() error {
			out, err := pc.checkLine(gctx, line, vendorID)
			if err != nil {
				return fmt.Errorf("line %d: %w", line.LineNumber, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := Summarize(outcomes)
	pc.logger.Debug("PRICE CHECK", "vendor %q: %d lines, %d unmatched, %d discrepancies",
		req.VendorName, summary.TotalLines, summary.UnmatchedLines, summary.Discrepancies)

	return &PriceCheckReport{Vendor: vendor, Lines: outcomes, Summary: summary}, nil
}

func (pc *PriceChecker) checkLine(ctx context.Context, line LineItem, vendorID *int64) (Outcome, error) {
	res, err := pc.resolver.Find(ctx, Identifier{
		ProductID:   line.ProductID,
		UPC:         line.UPC,
		ItemCode:    line.ItemCode,
		Description: line.Description,
		VendorID:    vendorID,
	})
	if err != nil {
		return Outcome{}, err
	}

	var current *store.PriceEntry
	if res.Found() {
		if current, err = pc.ledger.CurrentPrice(ctx, res.Product.ID); err != nil {
			return Outcome{}, err
		}
	}

	out := Verify(line, res.Product, current)
	out.ResolvedBy = res.By
	return out, nil
}
