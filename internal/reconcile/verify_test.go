package reconcile

import (
	"testing"

	"github.com/farxc/dsd_reconciler/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	product := &store.Product{ID: 7, Description: "DORITOS"}
	baseline := &store.PriceEntry{ProductID: 7, EffectiveDate: day("2024-03-01"), UnitCost: dec("10.00")}

	tests := []struct {
		name      string
		price     string
		product   *store.Product
		current   *store.PriceEntry
		wantType  string
		wantMatch bool
	}{
		{"increase beyond tolerance", "10.25", product, baseline, DiscrepancyPriceIncrease, true},
		{"decrease beyond tolerance", "9.50", product, baseline, DiscrepancyPriceDecrease, true},
		{"exactly at tolerance", "10.20", product, baseline, DiscrepancyNone, true},
		{"within tolerance", "9.85", product, baseline, DiscrepancyNone, true},
		{"no invoiced price", "0", product, baseline, DiscrepancyNone, true},
		{"no ledger entry", "10.25", product, nil, DiscrepancyUnmatched, false},
		{"no product", "10.25", nil, nil, DiscrepancyUnmatched, false},
		{"zero baseline", "10.25", product, &store.PriceEntry{UnitCost: dec("0")}, DiscrepancyUnmatched, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Verify(LineItem{LineNumber: 1, UnitPrice: dec(tt.price)}, tt.product, tt.current)
			assert.Equal(t, tt.wantType, out.DiscrepancyType)
			assert.Equal(t, tt.wantMatch, out.Matched)
			assert.Equal(t, tt.wantType == DiscrepancyPriceIncrease || tt.wantType == DiscrepancyPriceDecrease, out.Discrepancy != nil)
		})
	}
}

func TestVerifyPriceIncreaseDetails(t *testing.T) {
	out := Verify(
		LineItem{LineNumber: 3, Description: "DORITOS", UnitPrice: dec("10.25")},
		&store.Product{ID: 7},
		&store.PriceEntry{EffectiveDate: day("2024-03-01"), UnitCost: dec("10.00")},
	)

	require.NotNil(t, out.Discrepancy)
	assert.True(t, out.Discrepancy.Expected.Equal(dec("10.00")))
	assert.True(t, out.Discrepancy.Actual.Equal(dec("10.25")))
	assert.True(t, out.Discrepancy.Difference.Equal(dec("0.25")))
	assert.True(t, out.Discrepancy.PercentChange.Equal(dec("2.5")))
	assert.Equal(t, int64(7), *out.ProductID)
	assert.Equal(t, day("2024-03-01"), *out.LastPriceDate)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Outcome{
		{Matched: true, DiscrepancyType: DiscrepancyNone},
		{Matched: true, DiscrepancyType: DiscrepancyPriceIncrease},
		{Matched: true, DiscrepancyType: DiscrepancyPriceDecrease},
		{Matched: false, DiscrepancyType: DiscrepancyUnmatched},
	})
	assert.Equal(t, Summary{
		TotalLines:     4,
		MatchedLines:   3,
		UnmatchedLines: 1,
		PriceIncreases: 1,
		PriceDecreases: 1,
		Discrepancies:  2,
		HasIssues:      true,
	}, s)

	clean := Summarize([]Outcome{{Matched: true, DiscrepancyType: DiscrepancyNone}})
	assert.False(t, clean.HasIssues)
}
