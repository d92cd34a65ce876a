package extraction

import (
	"strings"

	"github.com/farxc/dsd_reconciler/internal/reconcile"
)

// Document is the invoice data returned by the extraction service.
type Document struct {
	VendorName    string     `json:"vendorName"`
	VendorAddress string     `json:"vendorAddress,omitempty"`
	CustomerName  string     `json:"customerName,omitempty"`
	InvoiceNumber string     `json:"invoiceNumber"`
	InvoiceDate   string     `json:"invoiceDate"`
	DueDate       string     `json:"dueDate,omitempty"`
	PurchaseOrder string     `json:"purchaseOrder,omitempty"`
	Subtotal      Amount     `json:"subtotal"`
	TotalTax      Amount     `json:"totalTax"`
	InvoiceTotal  Amount     `json:"invoiceTotal"`
	LineItems     []LineItem `json:"lineItems"`
	BlobURL       string     `json:"blobUrl,omitempty"`
	Filename      string     `json:"filename,omitempty"`
}

// LineItem is one extracted line. Product codes show up under several keys
// depending on the invoice layout.
type LineItem struct {
	LineNumber  int    `json:"lineNumber"`
	Description string `json:"description"`
	Quantity    Amount `json:"quantity"`
	Unit        string `json:"unit,omitempty"`
	UnitPrice   Amount `json:"unitPrice"`
	Amount      Amount `json:"amount"`
	ProductCode string `json:"productCode,omitempty"`
	SKU         string `json:"sku,omitempty"`
	ItemCode    string `json:"itemCode,omitempty"`
	UPC         string `json:"upc,omitempty"`
}

// Code returns the first product code present.
func (li LineItem) Code() string {
	for _, c := range []string{li.ProductCode, li.SKU, li.ItemCode, li.UPC} {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

// normalize fills defaults the service leaves out.
func (d *Document) normalize() {
	for i := range d.LineItems {
		if d.LineItems[i].LineNumber <= 0 {
			d.LineItems[i].LineNumber = i + 1
		}
		d.LineItems[i].Description = strings.TrimSpace(d.LineItems[i].Description)
	}
}

// ReconcileLines converts the extracted lines into reconciliation input. A
// code made only of digits long enough to be a barcode is treated as a UPC,
// anything else as the vendor's item code.
func (d *Document) ReconcileLines() []reconcile.LineItem {
	out := make([]reconcile.LineItem, len(d.LineItems))
	for i, li := range d.LineItems {
		line := reconcile.LineItem{
			LineNumber:  li.LineNumber,
			Description: li.Description,
			Quantity:    li.Quantity.Decimal,
			Unit:        li.Unit,
			UnitPrice:   li.UnitPrice.Decimal,
			Amount:      li.Amount.Decimal,
		}
		if upc := strings.TrimSpace(li.UPC); upc != "" {
			line.UPC = upc
		}
		code := li.Code()
		switch {
		case line.UPC == "" && looksLikeUPC(code):
			line.UPC = code
		case code != line.UPC:
			line.ItemCode = code
		}
		out[i] = line
	}
	return out
}

func looksLikeUPC(code string) bool {
	digits := reconcile.NormalizeUPC(code)
	if len(digits) < 11 || len(digits) > 14 {
		return false
	}
	for _, r := range code {
		if (r < '0' || r > '9') && r != '-' && r != ' ' {
			return false
		}
	}
	return true
}

// Submission prepares a coordinator submission from the document.
func (d *Document) Submission() reconcile.Submission {
	return reconcile.Submission{
		VendorName: d.VendorName,
		Invoice: reconcile.InvoiceHeader{
			InvoiceNumber: d.InvoiceNumber,
			InvoiceDate:   d.InvoiceDate,
			Subtotal:      d.Subtotal.Decimal,
			Tax:           d.TotalTax.Decimal,
			Total:         d.InvoiceTotal.Decimal,
			BlobURL:       d.BlobURL,
			Filename:      d.Filename,
		},
		LineItems: d.ReconcileLines(),
		Mode:      reconcile.ModeDocument,
	}
}
