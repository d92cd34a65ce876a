package reconcile

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/farxc/dsd_reconciler/internal/store"
	"github.com/jmoiron/sqlx/types"
)

// memDB is an in-memory stand-in for the Postgres stores. Transactions are
// serialized and roll back by restoring a snapshot.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	vendors  []store.Vendor
	products []store.Product
	prices   []store.PriceEntry
	invoices []store.Invoice
	lines    []store.InvoiceLine
	catalog  []store.CatalogMatch

	nextID int64

	failInsertLine error
	lockCalls      []int64
}

func newMemDB() *memDB { return &memDB{} }

func (m *memDB) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memDB) storage() *store.Storage {
	return &store.Storage{
		Vendors:  memVendors{m},
		Products: memProducts{m},
		Prices:   memPrices{m},
		Invoices: memInvoices{m},
		Catalog:  memCatalog{m},
	}
}

type memSnapshot struct {
	vendors  []store.Vendor
	products []store.Product
	prices   []store.PriceEntry
	invoices []store.Invoice
	lines    []store.InvoiceLine
	nextID   int64
}

func (m *memDB) WithTx(ctx context.Context, fn func(tx *store.Storage) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := memSnapshot{
		vendors:  append([]store.Vendor(nil), m.vendors...),
		products: append([]store.Product(nil), m.products...),
		prices:   append([]store.PriceEntry(nil), m.prices...),
		invoices: append([]store.Invoice(nil), m.invoices...),
		lines:    append([]store.InvoiceLine(nil), m.lines...),
		nextID:   m.nextID,
	}
	m.mu.Unlock()

	if err := fn(m.storage()); err != nil {
		m.mu.Lock()
		m.vendors, m.products, m.prices = snap.vendors, snap.products, snap.prices
		m.invoices, m.lines, m.nextID = snap.invoices, snap.lines, snap.nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

// seed helpers

func (m *memDB) addVendor(name, code string) store.Vendor {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := store.Vendor{ID: m.id(), Name: name, ShortCode: &code}
	m.vendors = append(m.vendors, v)
	return v
}

func (m *memDB) addProduct(p store.Product) store.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	if p.Source == "" {
		p.Source = store.SourceInternal
	}
	m.products = append(m.products, p)
	return p
}

func (m *memDB) addPrice(productID int64, date time.Time, cost string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices = append(m.prices, store.PriceEntry{ID: m.id(), ProductID: productID, EffectiveDate: date, UnitCost: dec(cost)})
}

func (m *memDB) pricesOf(productID int64) []store.PriceEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.PriceEntry
	for _, p := range m.prices {
		if p.ProductID == productID {
			out = append(out, p)
		}
	}
	return out
}

func (m *memDB) productCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.products)
}

func (m *memDB) invoiceByID(id int64) (store.Invoice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return store.Invoice{}, false
}

func (m *memDB) linesOf(invoiceID int64) []store.InvoiceLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.InvoiceLine
	for _, l := range m.lines {
		if l.InvoiceID == invoiceID {
			out = append(out, l)
		}
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

type memVendors struct{ m *memDB }

func (s memVendors) FindByFragment(ctx context.Context, fragment string) (*store.Vendor, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, v := range s.m.vendors {
		if containsFold(v.Name, fragment) || (v.ShortCode != nil && containsFold(*v.ShortCode, fragment)) {
			v := v
			return &v, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s memVendors) GetByID(ctx context.Context, id int64) (*store.Vendor, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, v := range s.m.vendors {
		if v.ID == id {
			v := v
			return &v, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s memVendors) Create(ctx context.Context, vendor *store.Vendor) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, v := range s.m.vendors {
		if v.Name == vendor.Name {
			*vendor = v
			return nil
		}
	}
	vendor.ID = s.m.id()
	s.m.vendors = append(s.m.vendors, *vendor)
	return nil
}

type memProducts struct{ m *memDB }

func (s memProducts) GetByID(ctx context.Context, id int64) (*store.Product, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range s.m.products {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s memProducts) FindByUPCs(ctx context.Context, upcs []string) (*store.Product, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range s.m.products {
		if p.UPC == nil {
			continue
		}
		for _, u := range upcs {
			if *p.UPC == u {
				p := p
				return &p, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (s memProducts) FindByItemCode(ctx context.Context, vendorID int64, itemCode string) (*store.Product, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range s.m.products {
		if p.VendorID != nil && *p.VendorID == vendorID && p.ItemCode != nil && *p.ItemCode == itemCode {
			p := p
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s memProducts) FindByDescription(ctx context.Context, fragment string, vendorID *int64) (*store.Product, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range s.m.products {
		if vendorID != nil && (p.VendorID == nil || *p.VendorID != *vendorID) {
			continue
		}
		if containsFold(p.Description, fragment) {
			p := p
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s memProducts) Insert(ctx context.Context, product *store.Product) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	product.ID = s.m.id()
	s.m.products = append(s.m.products, *product)
	return nil
}

func (s memProducts) UpsertByUPC(ctx context.Context, product *store.Product, overwrite bool) error {
	if product.UPC == nil {
		return errors.New("upsert by upc requires a upc")
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i, p := range s.m.products {
		if p.UPC != nil && *p.UPC == *product.UPC {
			if overwrite {
				if product.Description != "" {
					p.Description = product.Description
				}
				if product.ItemCode != nil {
					p.ItemCode = product.ItemCode
				}
				if product.VendorID != nil {
					p.VendorID = product.VendorID
				}
			} else {
				if p.ItemCode == nil {
					p.ItemCode = product.ItemCode
				}
				if p.VendorID == nil {
					p.VendorID = product.VendorID
				}
			}
			s.m.products[i] = p
			*product = p
			return nil
		}
	}
	product.ID = s.m.id()
	s.m.products = append(s.m.products, *product)
	return nil
}

func (s memProducts) LockForUpdate(ctx context.Context, id int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.lockCalls = append(s.m.lockCalls, id)
	return nil
}

type memPrices struct{ m *memDB }

func (s memPrices) Current(ctx context.Context, productID int64) (*store.PriceEntry, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var best *store.PriceEntry
	for i := range s.m.prices {
		e := s.m.prices[i]
		if e.ProductID != productID {
			continue
		}
		if best == nil || e.EffectiveDate.After(best.EffectiveDate) ||
			(e.EffectiveDate.Equal(best.EffectiveDate) && e.ID > best.ID) {
			best = &e
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

func (s memPrices) Insert(ctx context.Context, entry *store.PriceEntry) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	entry.ID = s.m.id()
	s.m.prices = append(s.m.prices, *entry)
	return nil
}

func (s memPrices) History(ctx context.Context, productID int64, limit int) ([]store.PriceEntry, error) {
	entries := s.m.pricesOf(productID)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

type memInvoices struct{ m *memDB }

func (s memInvoices) Upsert(ctx context.Context, invoice *store.Invoice) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i, inv := range s.m.invoices {
		if inv.VendorID == invoice.VendorID && inv.InvoiceNumber == invoice.InvoiceNumber {
			invoice.ID = inv.ID
			if invoice.BlobURL == nil {
				invoice.BlobURL = inv.BlobURL
			}
			if invoice.ScanFilename == nil {
				invoice.ScanFilename = inv.ScanFilename
			}
			s.m.invoices[i] = *invoice
			return false, nil
		}
	}
	invoice.ID = s.m.id()
	s.m.invoices = append(s.m.invoices, *invoice)
	return true, nil
}

func (s memInvoices) DeleteLines(ctx context.Context, invoiceID int64) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	kept := s.m.lines[:0:0]
	var removed int64
	for _, l := range s.m.lines {
		if l.InvoiceID == invoiceID {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	s.m.lines = kept
	return removed, nil
}

func (s memInvoices) InsertLine(ctx context.Context, line *store.InvoiceLine) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.failInsertLine != nil {
		return s.m.failInsertLine
	}
	line.ID = s.m.id()
	s.m.lines = append(s.m.lines, *line)
	return nil
}

func (s memInvoices) Finalize(ctx context.Context, invoiceID int64, status string, notes *string, audit []byte) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.invoices {
		if s.m.invoices[i].ID == invoiceID {
			s.m.invoices[i].PaymentStatus = status
			s.m.invoices[i].Notes = notes
			s.m.invoices[i].ReceivingAudit = types.JSONText(audit)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s memInvoices) SetPaymentStatus(ctx context.Context, invoiceID int64, status string, notes *string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.invoices {
		if s.m.invoices[i].ID == invoiceID {
			s.m.invoices[i].PaymentStatus = status
			if notes != nil {
				s.m.invoices[i].Notes = notes
			}
			return nil
		}
	}
	return store.ErrNotFound
}

func (s memInvoices) GetByID(ctx context.Context, invoiceID int64) (*store.Invoice, error) {
	inv, ok := s.m.invoiceByID(invoiceID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &inv, nil
}

func (s memInvoices) Lines(ctx context.Context, invoiceID int64) ([]store.InvoiceLine, error) {
	return s.m.linesOf(invoiceID), nil
}

func (s memInvoices) ListByStatus(ctx context.Context, status string, limit int) ([]store.InvoiceSummary, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []store.InvoiceSummary{}
	for _, inv := range s.m.invoices {
		if inv.PaymentStatus != status {
			continue
		}
		out = append(out, store.InvoiceSummary{ID: inv.ID, InvoiceNumber: inv.InvoiceNumber, PaymentStatus: inv.PaymentStatus})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s memInvoices) Stats(ctx context.Context) (store.DashboardStats, error) {
	return store.DashboardStats{}, nil
}

type memCatalog struct{ m *memDB }

func (s memCatalog) FindByUPCs(ctx context.Context, upcs []string) (*store.CatalogMatch, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.catalog {
		for _, u := range upcs {
			if c.UPC == u {
				c := c
				return &c, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (s memCatalog) Upsert(ctx context.Context, item *store.CatalogItem) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	item.ID = s.m.id()
	s.m.catalog = append(s.m.catalog, store.CatalogMatch{CatalogItem: *item})
	return nil
}

func (s memCatalog) LinkVendors(ctx context.Context) (int64, int64, error) {
	return 0, 0, nil
}
