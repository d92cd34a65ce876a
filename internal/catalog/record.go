package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Catalog sources.
const (
	SourceAWG      = "awg"
	SourceInternal = "internal"
)

// Record is one catalog row, whether it came from a file or an API body.
type Record struct {
	UPC         string              `json:"upc"`
	ItemNumber  string              `json:"item_number,omitempty"`
	ItemCode    string              `json:"item_code,omitempty"`
	Description string              `json:"description"`
	Brand       string              `json:"brand,omitempty"`
	VendorName  string              `json:"vendor_name,omitempty"`
	VendorID    *int64              `json:"vendor_id,omitempty"`
	PackSize    string              `json:"pack_size,omitempty"`
	CaseCost    decimal.NullDecimal `json:"case_cost"`
	Category    string              `json:"category,omitempty"`
	Subcategory string              `json:"subcategory,omitempty"`
	Department  string              `json:"department,omitempty"`
	IsDSD       bool                `json:"is_dsd,omitempty"`
}

// Column names accepted for each record field, compared after
// normalizeHeader.
var columnAliases = map[string][]string{
	"upc":         {"upc", "upc code", "gtin", "barcode"},
	"item_number": {"item number", "item no", "item #", "awg item", "awg item number"},
	"item_code":   {"item code", "sku", "vendor item"},
	"description": {"description", "item description", "product description", "desc"},
	"brand":       {"brand"},
	"vendor_name": {"vendor", "vendor name", "supplier"},
	"vendor_id":   {"vendor id"},
	"pack_size":   {"pack size", "pack", "size"},
	"case_cost":   {"case cost", "cost", "unit cost"},
	"category":    {"category"},
	"subcategory": {"subcategory", "sub category"},
	"department":  {"department", "dept"},
	"is_dsd":      {"dsd", "is dsd", "is_dsd"},
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.NewReplacer("_", " ", "-", " ", ".", "").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

// resolveColumns maps each record field to the header it is read from.
func resolveColumns(headers []string) map[string]int {
	byName := make(map[string]int, len(headers))
	for i, h := range headers {
		n := normalizeHeader(h)
		if _, dup := byName[n]; !dup {
			byName[n] = i
		}
	}

	cols := make(map[string]int, len(columnAliases))
	for field, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := byName[normalizeHeader(a)]; ok {
				cols[field] = i
				break
			}
		}
	}
	return cols
}
