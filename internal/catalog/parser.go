package catalog

import (
	"strconv"
	"strings"

	"github.com/farxc/dsd_reconciler/internal/extraction"
	"github.com/shopspring/decimal"
)

func ParseMoney(s string) decimal.NullDecimal {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(extraction.ParseAmount(s))
}

func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1", "x", "dsd":
		return true
	}
	return false
}

func ParseInt64(s string) *int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}
