package reconcile

import (
	"context"

	"github.com/farxc/dsd_reconciler/internal/logger"
	"github.com/farxc/dsd_reconciler/internal/store"
)

// Lookup confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Lookup sources.
const (
	LookupSourceInternal = "internal"
	LookupSourceCatalog  = "awg"
)

// LookupResult is advisory: it helps identify an unknown barcode and never
// feeds verification.
type LookupResult struct {
	UPC         string              `json:"upc"`
	Found       bool                `json:"found"`
	Source      string              `json:"source,omitempty"`
	Confidence  string              `json:"confidence,omitempty"`
	Note        string              `json:"note,omitempty"`
	Product     *store.Product      `json:"product,omitempty"`
	Vendor      *store.Vendor       `json:"vendor,omitempty"`
	CatalogItem *store.CatalogMatch `json:"catalog_item,omitempty"`
}

// CatalogCache memoizes catalog lookups by canonical UPC.
type CatalogCache interface {
	Get(ctx context.Context, upc string) (*LookupResult, bool, error)
	Set(ctx context.Context, upc string, result *LookupResult) error
}

type vendorGetter interface {
	GetByID(ctx context.Context, id int64) (*store.Vendor, error)
}

// Lookuper searches the internal product table, then the wholesale catalog.
type Lookuper struct {
	products productFinder
	vendors  vendorGetter
	catalog  catalogFinder
	cache    CatalogCache
	logger   *logger.Logger
}

// NewLookuper builds a lookuper. cache may be nil.
func NewLookuper(products productFinder, vendors vendorGetter, catalog catalogFinder, cache CatalogCache, log *logger.Logger) *Lookuper {
	if log == nil {
		log = logger.Discard()
	}
	return &Lookuper{products: products, vendors: vendors, catalog: catalog, cache: cache, logger: log}
}

func (lk *Lookuper) Lookup(ctx context.Context, rawUPC string) (*LookupResult, error) {
	upc := CanonicalUPC(rawUPC)
	if upc == "" {
		return nil, &ValidationError{Fields: map[string]string{"upc": "required"}}
	}
	variants := UPCVariants(rawUPC)

	p, err := lk.products.FindByUPCs(ctx, variants)
	if hit, err := found(p, err); err != nil {
		return nil, err
	} else if hit {
		res := &LookupResult{
			UPC:        upc,
			Found:      true,
			Source:     LookupSourceInternal,
			Confidence: ConfidenceMedium,
			Product:    p,
		}
		if p.Verified {
			res.Confidence = ConfidenceHigh
		}
		if p.VendorID != nil {
			v, err := lk.vendors.GetByID(ctx, *p.VendorID)
			if _, err := found(v, err); err != nil {
				return nil, err
			}
			res.Vendor = v
		}
		return res, nil
	}

	if lk.cache != nil {
		cached, ok, err := lk.cache.Get(ctx, upc)
		if err != nil {
			lk.logger.Warn("LOOKUP", "catalog cache read for %s failed: %v", upc, err)
		} else if ok {
			return cached, nil
		}
	}

	res, err := lk.catalogLookup(ctx, upc, variants)
	if err != nil {
		return nil, err
	}

	if lk.cache != nil {
		if err := lk.cache.Set(ctx, upc, res); err != nil {
			lk.logger.Warn("LOOKUP", "catalog cache write for %s failed: %v", upc, err)
		}
	}
	return res, nil
}

func (lk *Lookuper) catalogLookup(ctx context.Context, upc string, variants []string) (*LookupResult, error) {
	item, err := lk.catalog.FindByUPCs(ctx, variants)
	hit, err := found(item, err)
	if err != nil {
		return nil, err
	}
	if !hit {
		return &LookupResult{UPC: upc, Found: false}, nil
	}

	res := &LookupResult{
		UPC:         upc,
		Found:       true,
		Source:      LookupSourceCatalog,
		Confidence:  ConfidenceLow,
		Note:        "Catalog match - verify vendor",
		CatalogItem: item,
	}
	if item.VendorID != nil {
		res.Confidence = ConfidenceMedium
		res.Note = "Common DSD item"
	}
	return res, nil
}
