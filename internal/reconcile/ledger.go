package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/farxc/dsd_reconciler/internal/store"
	"github.com/shopspring/decimal"
)

// LedgerEpsilon is the smallest unit cost movement worth a new ledger entry.
const LedgerEpsilon = 0.001

var ledgerEpsilon = decimal.NewFromFloat(LedgerEpsilon)

// Ledger is the append-only price history of products.
type Ledger struct {
	prices priceRepo
	locker productLocker
}

// NewLedger builds a ledger. locker may be nil outside a transaction.
func NewLedger(prices priceRepo, locker productLocker) *Ledger {
	return &Ledger{prices: prices, locker: locker}
}

// CurrentPrice returns the most recent entry, or nil when the product has
// never been priced.
func (l *Ledger) CurrentPrice(ctx context.Context, productID int64) (*store.PriceEntry, error) {
	e, err := l.prices.Current(ctx, productID)
	if hit, err := found(e, err); err != nil || !hit {
		return nil, err
	}
	return e, nil
}

// Record appends an observed unit cost when it differs from the current
// entry by more than LedgerEpsilon. It returns nil when nothing was
// appended: non-positive costs, observations older than the current entry
// and unchanged prices.
func (l *Ledger) Record(ctx context.Context, productID int64, effectiveDate time.Time, unitCost decimal.Decimal, sourceInvoiceID *int64) (*store.PriceEntry, error) {
	if !unitCost.IsPositive() {
		return nil, nil
	}

	if l.locker != nil {
		if err := l.locker.LockForUpdate(ctx, productID); err != nil {
			return nil, fmt.Errorf("failed to lock product %d: %w", productID, err)
		}
	}

	current, err := l.CurrentPrice(ctx, productID)
	if err != nil {
		return nil, err
	}

	entry := &store.PriceEntry{
		ProductID:       productID,
		EffectiveDate:   dateOnly(effectiveDate),
		UnitCost:        unitCost,
		SourceInvoiceID: sourceInvoiceID,
	}

	if current != nil {
		if entry.EffectiveDate.Before(dateOnly(current.EffectiveDate)) {
			return nil, nil
		}
		if unitCost.Sub(current.UnitCost).Abs().LessThanOrEqual(ledgerEpsilon) {
			return nil, nil
		}
		entry.PreviousCost = decimal.NewNullDecimal(current.UnitCost)
		if current.UnitCost.IsPositive() {
			pct := unitCost.Sub(current.UnitCost).Div(current.UnitCost).Mul(hundred).Round(4)
			entry.ChangePct = decimal.NewNullDecimal(pct)
		}
	}

	if err := l.prices.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record price for product %d: %w", productID, err)
	}
	return entry, nil
}

var hundred = decimal.NewFromInt(100)

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
