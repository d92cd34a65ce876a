package reconcile

import (
	"strings"
	"unicode/utf8"
)

// DescriptionPrefixLength is how much of an extracted description is used
// for substring matching against the product table.
const DescriptionPrefixLength = 20

// Matcher turns free text into the fragment searched for as a
// case-insensitive substring. An empty fragment means "do not search".
type Matcher interface {
	Pattern(s string) string
}

// PrefixMatcher keeps the first Length characters of the trimmed input.
type PrefixMatcher struct {
	Length int
}

func (m PrefixMatcher) Pattern(s string) string {
	s = strings.TrimSpace(s)
	if m.Length <= 0 || utf8.RuneCountInString(s) <= m.Length {
		return s
	}
	return string([]rune(s)[:m.Length])
}

// FirstTokenMatcher keeps the first whitespace separated token. Vendor
// names on invoices vary in suffixes ("Frito-Lay Inc", "FRITO-LAY NORTH
// AMERICA"), rarely in the leading word.
type FirstTokenMatcher struct{}

func (FirstTokenMatcher) Pattern(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// DefaultDescriptionMatcher and DefaultVendorMatcher are the production
// matching policies.
var (
	DefaultDescriptionMatcher Matcher = PrefixMatcher{Length: DescriptionPrefixLength}
	DefaultVendorMatcher      Matcher = FirstTokenMatcher{}
)

// ShortCode derives a vendor short code from its name: the first ten
// characters, upper-cased.
func ShortCode(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > 10 {
		name = string([]rune(name)[:10])
	}
	return strings.ToUpper(strings.TrimSpace(name))
}
