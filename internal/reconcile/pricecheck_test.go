package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/farxc/dsd_reconciler/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceCheckIsReadOnly(t *testing.T) {
	db := newMemDB()
	v := db.addVendor("Frito-Lay", "FRITO-LAY")
	p := db.addProduct(store.Product{UPC: ptr("028400090858"), Description: "DORITOS NACHO 9.25OZ", VendorID: &v.ID})
	db.addPrice(p.ID, day("2024-02-01"), "10.00")

	s := db.storage()
	pc := NewPriceChecker(s.Vendors, s.Products, s.Prices, 2, nil)

	report, err := pc.Check(context.Background(), PriceCheckRequest{
		VendorName: "Frito-Lay Inc",
		LineItems: []LineItem{
			{UPC: "028400090858", UnitPrice: dec("10.25")},
			{UPC: "012000171864", Description: "MTN DEW", UnitPrice: dec("1.10")},
			{Description: "DORITOS NACHO 9.25OZ BAG", UnitPrice: dec("9.90")},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, report.Vendor)
	assert.Equal(t, v.ID, report.Vendor.ID)
	require.Len(t, report.Lines, 3)
	assert.Equal(t, 1, report.Lines[0].LineNumber)
	assert.Equal(t, DiscrepancyPriceIncrease, report.Lines[0].DiscrepancyType)
	assert.Equal(t, DiscrepancyUnmatched, report.Lines[1].DiscrepancyType)
	assert.Equal(t, DiscrepancyNone, report.Lines[2].DiscrepancyType)
	assert.Equal(t, ResolvedByDescription, report.Lines[2].ResolvedBy)

	assert.Equal(t, 1, report.Summary.UnmatchedLines)
	assert.Equal(t, 1, report.Summary.PriceIncreases)
	assert.True(t, report.Summary.HasIssues)

	assert.Equal(t, 1, db.productCount())
	assert.Len(t, db.pricesOf(p.ID), 1)
}

func TestPriceCheckUnknownVendor(t *testing.T) {
	db := newMemDB()
	s := db.storage()
	pc := NewPriceChecker(s.Vendors, s.Products, s.Prices, 0, nil)

	report, err := pc.Check(context.Background(), PriceCheckRequest{
		VendorName: "Nobody Foods",
		LineItems:  []LineItem{{Description: "THING", UnitPrice: dec("1")}},
	})
	require.NoError(t, err)
	assert.Nil(t, report.Vendor)
	assert.Empty(t, db.vendors)
	assert.False(t, report.Lines[0].Matched)
}

func TestPriceCheckManyLines(t *testing.T) {
	db := newMemDB()
	v := db.addVendor("Frito-Lay", "FRITO-LAY")
	var lines []LineItem
	for i := 0; i < 40; i++ {
		upc := fmt.Sprintf("%012d", 100000+i)
		p := db.addProduct(store.Product{UPC: &upc, Description: fmt.Sprintf("ITEM %d", i), VendorID: &v.ID})
		db.addPrice(p.ID, day("2024-01-01"), "1.00")
		lines = append(lines, LineItem{UPC: upc, UnitPrice: dec("1.00")})
	}

	s := db.storage()
	report, err := NewPriceChecker(s.Vendors, s.Products, s.Prices, 4, nil).Check(context.Background(), PriceCheckRequest{VendorName: "Frito-Lay", LineItems: lines})
	require.NoError(t, err)
	assert.Equal(t, 40, report.Summary.MatchedLines)
	for i, out := range report.Lines {
		assert.Equal(t, i+1, out.LineNumber)
	}
}

func TestPriceCheckValidation(t *testing.T) {
	s := newMemDB().storage()
	_, err := NewPriceChecker(s.Vendors, s.Products, s.Prices, 1, nil).Check(context.Background(), PriceCheckRequest{})
	assert.True(t, IsValidation(err))
}
