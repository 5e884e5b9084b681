package distribution

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoUnits is returned when the provider has not reported a usable
	// allotted quantity yet. Callers log and retry on the next poll tick.
	ErrNoUnits = errors.New("allotted units missing or not positive")
	// ErrNoItems is returned for an empty line-item batch.
	ErrNoItems = errors.New("no line items to distribute over")
)

const (
	// CalcScale is the fractional precision used for intermediate math.
	CalcScale int32 = 8
	// UnitScale is the fractional precision persisted for units.
	UnitScale int32 = 4
)

// Allocation is one line item's requested slice of an order.
type Allocation struct {
	ItemID int64
	Amount decimal.Decimal
}

// Distribute splits totalUnits across items so that the rounded shares sum
// exactly to totalUnits at UnitScale. Items with a positive total amount
// are split proportionally to their amounts; otherwise the split is equal.
// In both branches the per-item share is computed once at CalcScale,
// rounded half-up to UnitScale, and the last item absorbs the exact
// remainder. For sell fills the shares are negated after rounding so the
// ledger records a disposal.
//
// The function is pure: no I/O, no logging, deterministic for any input.
func Distribute(items []Allocation, totalUnits decimal.Decimal, sell bool) ([]decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if totalUnits.Sign() <= 0 {
		return nil, ErrNoUnits
	}

	total := roundHalfUp(totalUnits, UnitScale)

	totalAmount := decimal.Zero
	for _, it := range items {
		if it.Amount.Sign() > 0 {
			totalAmount = totalAmount.Add(it.Amount)
		}
	}

	shares := make([]decimal.Decimal, len(items))
	allotted := decimal.Zero
	for i := range items {
		if i == len(items)-1 {
			// Last item takes whatever rounding left over; this is what
			// keeps the sum exact.
			shares[i] = total.Sub(allotted)
			break
		}
		var raw decimal.Decimal
		if totalAmount.Sign() > 0 {
			raw = total.Mul(items[i].Amount).DivRound(totalAmount, CalcScale)
		} else {
			raw = total.DivRound(decimal.NewFromInt(int64(len(items))), CalcScale)
		}
		shares[i] = roundHalfUp(raw, UnitScale)
		allotted = allotted.Add(shares[i])
	}

	if sell {
		for i := range shares {
			shares[i] = shares[i].Abs().Neg()
		}
	}
	return shares, nil
}

// UnitPrice validates a provider-reported purchase price for broadcast to
// every item in the batch. A zero or negative price yields nil so callers
// never persist a silent zero.
func UnitPrice(totalPurchasedPrice decimal.Decimal) *decimal.Decimal {
	if totalPurchasedPrice.Sign() <= 0 {
		return nil
	}
	p := roundHalfUp(totalPurchasedPrice, UnitScale)
	return &p
}

// roundHalfUp rounds to the given scale with ties away from zero, which
// for the non-negative quantities used here is exactly half-up.
func roundHalfUp(d decimal.Decimal, scale int32) decimal.Decimal {
	return d.Round(scale)
}
