package catalog

import (
	"strings"

	"github.com/go-gota/gota/dataframe"
)

// toRecord builds a Record from a cell getter keyed by record field.
func toRecord(get func(field string) string) Record {
	return Record{
		UPC:         get("upc"),
		ItemNumber:  get("item_number"),
		ItemCode:    get("item_code"),
		Description: get("description"),
		Brand:       get("brand"),
		VendorName:  get("vendor_name"),
		VendorID:    ParseInt64(get("vendor_id")),
		PackSize:    get("pack_size"),
		CaseCost:    ParseMoney(get("case_cost")),
		Category:    get("category"),
		Subcategory: get("subcategory"),
		Department:  get("department"),
		IsDSD:       ParseBool(get("is_dsd")),
	}
}

// DfRowToRecord reads one dataframe row.
func DfRowToRecord(df dataframe.DataFrame, rowIdx int, cols map[string]int) Record {
	names := df.Names()
	return toRecord(func(field string) string {
		i, ok := cols[field]
		if !ok {
			return ""
		}
		v := df.Col(names[i]).Elem(rowIdx).String()
		if v == "NaN" {
			return ""
		}
		return strings.TrimSpace(v)
	})
}

// RowToRecord reads one spreadsheet row. Rows may be shorter than the
// header when trailing cells are empty.
func RowToRecord(row []string, cols map[string]int) Record {
	return toRecord(func(field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	})
}
