package reconcile

import "strings"

// NormalizeUPC keeps only the digits of a scanned or extracted barcode.
// Extraction output often carries dashes or spaces ("0-12000-17186-4").
func NormalizeUPC(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UPCVariants lists every representation under which the same physical
// barcode may have been stored: the literal digits, the value without
// leading zeros, and that value left-padded to UPC-A (12), EAN-13 and
// GTIN-14 width. Any two inputs that differ only in zero padding produce the
// same set, apart from the literal entry which is always one of the others.
func UPCVariants(raw string) []string {
	literal := NormalizeUPC(raw)
	if literal == "" {
		return nil
	}

	stripped := strings.TrimLeft(literal, "0")
	if stripped == "" {
		return []string{literal}
	}

	seen := make(map[string]bool, 5)
	out := make([]string, 0, 5)
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	add(literal)
	add(stripped)
	for _, width := range []int{12, 13, 14} {
		if len(stripped) <= width {
			add(leftPad(stripped, width))
		}
	}
	return out
}

// CanonicalUPC is the form new products are stored under: zero-stripped and
// padded to UPC-A width when it fits, otherwise the stripped EAN/GTIN value.
func CanonicalUPC(raw string) string {
	literal := NormalizeUPC(raw)
	if literal == "" {
		return ""
	}
	stripped := strings.TrimLeft(literal, "0")
	if stripped == "" {
		return literal
	}
	if len(stripped) <= 12 {
		return leftPad(stripped, 12)
	}
	return stripped
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
