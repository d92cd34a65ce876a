package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/farxc/dsd_reconciler/internal/logger"
	"github.com/farxc/dsd_reconciler/internal/reconcile"
	"github.com/farxc/dsd_reconciler/internal/store"
)

// ErrEmptyFile is returned for catalog files without data rows.
var ErrEmptyFile = errors.New("catalog file has no rows")

// MaxErrorSamples bounds the row errors reported per load.
const MaxErrorSamples = 10

type catalogWriter interface {
	Upsert(ctx context.Context, item *store.CatalogItem) error
	LinkVendors(ctx context.Context) (matched, unmatched int64, err error)
}

type productWriter interface {
	UpsertByUPC(ctx context.Context, product *store.Product, overwrite bool) error
}

type Result struct {
	Source   string   `json:"source"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

func (r *Result) skip(upc string, err error) {
	r.Skipped++
	if len(r.Errors) < MaxErrorSamples {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", upc, err))
	}
}

type LinkResult struct {
	Matched   int64 `json:"matched"`
	Unmatched int64 `json:"unmatched"`
}

// Loader writes catalog records either to the wholesale reference table or
// to the internal product table.
type Loader struct {
	catalog  catalogWriter
	products productWriter
	logger   *logger.Logger
}

func NewLoader(catalog catalogWriter, products productWriter, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Discard()
	}
	return &Loader{catalog: catalog, products: products, logger: log}
}

// ValidSource reports whether source names a loadable catalog.
func ValidSource(source string) bool {
	return source == SourceAWG || source == SourceInternal
}

// Load upserts records one by one. A bad row is skipped and sampled; only
// a cancelled context stops the load.
func (l *Loader) Load(ctx context.Context, source string, records []Record) (Result, error) {
	const component = "CATALOG LOADER"

	if !ValidSource(source) {
		return Result{}, &reconcile.ValidationError{Fields: map[string]string{"source": "oneof=awg internal"}}
	}

	result := Result{Source: source}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var err error
		switch source {
		case SourceAWG:
			err = l.loadCatalogItem(ctx, rec)
		case SourceInternal:
			err = l.loadProduct(ctx, rec)
		}
		if err != nil {
			result.skip(rec.UPC, err)
			continue
		}
		result.Imported++
	}

	l.logger.Info(component, "loaded %s catalog: imported=%d skipped=%d", source, result.Imported, result.Skipped)
	return result, nil
}

func (l *Loader) loadCatalogItem(ctx context.Context, rec Record) error {
	upc := reconcile.CanonicalUPC(rec.UPC)
	if upc == "" {
		return errors.New("missing upc")
	}

	item := &store.CatalogItem{
		UPC:         upc,
		ItemNumber:  strings.TrimSpace(rec.ItemNumber),
		Description: strings.TrimSpace(rec.Description),
		Brand:       optional(rec.Brand),
		VendorName:  optional(rec.VendorName),
		PackSize:    optional(rec.PackSize),
		CaseCost:    rec.CaseCost,
		Category:    optional(rec.Category),
		Subcategory: optional(rec.Subcategory),
		Department:  optional(rec.Department),
		IsDSD:       rec.IsDSD,
	}
	return l.catalog.Upsert(ctx, item)
}

func (l *Loader) loadProduct(ctx context.Context, rec Record) error {
	upc := reconcile.CanonicalUPC(rec.UPC)
	if upc == "" {
		return errors.New("missing upc")
	}
	description := strings.TrimSpace(rec.Description)
	if description == "" {
		return errors.New("missing description")
	}

	code := rec.ItemCode
	if code == "" {
		code = rec.ItemNumber
	}

	p := &store.Product{
		UPC:         &upc,
		ItemCode:    optional(code),
		Description: description,
		VendorID:    rec.VendorID,
		PackSize:    optional(rec.PackSize),
		Category:    optional(rec.Category),
		Source:      store.SourceInternal,
		Verified:    true,
	}
	return l.products.UpsertByUPC(ctx, p, true)
}

// LinkVendors attaches catalog rows to vendors whose name or short code
// appears in the row's vendor name or brand.
func (l *Loader) LinkVendors(ctx context.Context) (LinkResult, error) {
	matched, unmatched, err := l.catalog.LinkVendors(ctx)
	if err != nil {
		return LinkResult{}, err
	}
	l.logger.Info("CATALOG LOADER", "vendor linkage: matched=%d unmatched=%d", matched, unmatched)
	return LinkResult{Matched: matched, Unmatched: unmatched}, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
