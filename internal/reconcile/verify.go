package reconcile

import (
	"time"

	"github.com/farxc/dsd_reconciler/internal/store"
	"github.com/shopspring/decimal"
)

// PriceTolerancePct is the largest relative price movement, in percent,
// still treated as a match.
const PriceTolerancePct = 2.0

var priceTolerance = decimal.NewFromFloat(PriceTolerancePct)

// Discrepancy types.
const (
	DiscrepancyNone          = "none"
	DiscrepancyPriceIncrease = "price_increase"
	DiscrepancyPriceDecrease = "price_decrease"
	DiscrepancyUnmatched     = "unmatched"
)

type Discrepancy struct {
	Expected      decimal.Decimal `json:"expected"`
	Actual        decimal.Decimal `json:"actual"`
	Difference    decimal.Decimal `json:"difference"`
	PercentChange decimal.Decimal `json:"percent_change"`
}

// Outcome is the verification result of one invoice line.
type Outcome struct {
	LineNumber      int              `json:"line_number"`
	Description     string           `json:"description"`
	ProductID       *int64           `json:"product_id,omitempty"`
	ResolvedBy      string           `json:"resolved_by,omitempty"`
	Matched         bool             `json:"matched"`
	DiscrepancyType string           `json:"discrepancy_type"`
	Discrepancy     *Discrepancy     `json:"discrepancy,omitempty"`
	ExpectedCost    *decimal.Decimal `json:"expected_cost,omitempty"`
	LastPriceDate   *time.Time       `json:"last_price_date,omitempty"`
	LineStatus      string           `json:"line_status,omitempty"`
}

// HasDiscrepancy reports a price movement outside tolerance.
func (o Outcome) HasDiscrepancy() bool {
	return o.DiscrepancyType == DiscrepancyPriceIncrease || o.DiscrepancyType == DiscrepancyPriceDecrease
}

// Verify compares the invoiced unit price of line against the product's
// current ledger entry. A line without a product or baseline is unmatched;
// a line without an invoiced price has nothing to compare and passes.
func Verify(line LineItem, product *store.Product, current *store.PriceEntry) Outcome {
	out := Outcome{
		LineNumber:      line.LineNumber,
		Description:     line.Description,
		DiscrepancyType: DiscrepancyNone,
	}
	if product != nil {
		id := product.ID
		out.ProductID = &id
	}

	if product == nil || current == nil || !current.UnitCost.IsPositive() {
		out.DiscrepancyType = DiscrepancyUnmatched
		return out
	}

	expected := current.UnitCost
	lastDate := current.EffectiveDate
	out.Matched = true
	out.ExpectedCost = &expected
	out.LastPriceDate = &lastDate

	if !line.UnitPrice.IsPositive() {
		return out
	}

	diff := line.UnitPrice.Sub(expected)
	pct := diff.Div(expected).Mul(hundred)
	if pct.Abs().GreaterThan(priceTolerance) {
		out.DiscrepancyType = DiscrepancyPriceDecrease
		if diff.IsPositive() {
			out.DiscrepancyType = DiscrepancyPriceIncrease
		}
		out.Discrepancy = &Discrepancy{
			Expected:      expected,
			Actual:        line.UnitPrice,
			Difference:    diff,
			PercentChange: pct.Round(4),
		}
	}
	return out
}

// Summary aggregates the outcomes of one invoice.
type Summary struct {
	TotalLines     int  `json:"total_lines"`
	MatchedLines   int  `json:"matched_lines"`
	UnmatchedLines int  `json:"unmatched_lines"`
	PriceIncreases int  `json:"price_increases"`
	PriceDecreases int  `json:"price_decreases"`
	Discrepancies  int  `json:"discrepancies"`
	HasIssues      bool `json:"has_issues"`
}

func Summarize(outcomes []Outcome) Summary {
	s := Summary{TotalLines: len(outcomes)}
	for _, o := range outcomes {
		if o.Matched {
			s.MatchedLines++
		} else {
			s.UnmatchedLines++
		}
		switch o.DiscrepancyType {
		case DiscrepancyPriceIncrease:
			s.PriceIncreases++
		case DiscrepancyPriceDecrease:
			s.PriceDecreases++
		}
	}
	s.Discrepancies = s.PriceIncreases + s.PriceDecreases
	s.HasIssues = s.Discrepancies > 0 || s.UnmatchedLines > 0
	return s
}
