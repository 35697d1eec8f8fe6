// Package ledger holds the settlement rules of an order: the status machine,
// the discount/surcharge/comp stacking, the split payment computer and the
// loyalty stamp matcher.
//
// Every function mutates the *model.Order it receives in memory and never
// touches storage. Callers clone the persisted order, apply one command, run
// CheckInvariants and commit the clone atomically, so a failed command leaves
// nothing behind.
package ledger

import (
	"time"

	"settlepos/internal/apierror"
	"settlepos/internal/model"
	"settlepos/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Meta carries who issued a command, who authorised it and when.
// Authorizer equals Actor unless a supervisor override was captured.
type Meta struct {
	Actor      uuid.UUID
	Authorizer uuid.UUID
	Now        time.Time
}

// NewOrder builds an empty OPEN order.
func NewOrder(receipt int, meta Meta) *model.Order {
	return &model.Order{
		ID:              uuid.New(),
		ReceiptNumber:   receipt,
		Status:          model.OrderOpen,
		SplitMode:       model.SplitModeNone,
		PaidQuantities:  map[string]int{},
		CreatedBy:       meta.Actor,
		CreatedAt:       meta.Now,
		UpdatedAt:       meta.Now,
		Total:           decimal.Zero,
		PaidAmount:      decimal.Zero,
		RemainingAmount: decimal.Zero,
	}
}

// CheckInvariants verifies the ledger identities that must hold after every
// command.
func CheckInvariants(o *model.Order) error {
	if o.RemainingAmount.IsNegative() {
		return apierror.ErrLedgerInvariant.With("remaining %s is negative", o.RemainingAmount)
	}
	if !money.WithinTolerance(o.PaidAmount.Add(o.RemainingAmount), o.Total) {
		return apierror.ErrLedgerInvariant.With("paid %s + remaining %s != total %s", o.PaidAmount, o.RemainingAmount, o.Total)
	}
	active := decimal.Zero
	for _, p := range o.Payments {
		if !p.Cancelled {
			active = active.Add(p.Amount)
		}
	}
	if !active.Equal(o.PaidAmount) {
		return apierror.ErrLedgerInvariant.With("payments sum %s != paid %s", active, o.PaidAmount)
	}
	if active.GreaterThan(o.Total) {
		return apierror.ErrLedgerInvariant.With("payments %s exceed total %s", active, o.Total)
	}
	for i := range o.Items {
		it := &o.Items[i]
		if o.PaidQuantity(it.ID)+it.CompQuantity > it.Quantity {
			return apierror.ErrLedgerInvariant.With("item %s over-allocated", it.ID)
		}
		if it.Removed && o.PaidQuantity(it.ID) > 0 {
			return apierror.ErrLedgerInvariant.With("removed item %s has payments", it.ID)
		}
	}
	if o.AATotalShares != nil && (o.AAPaidShares < 0 || o.AAPaidShares > *o.AATotalShares) {
		return apierror.ErrLedgerInvariant.With("aa shares %d/%d", o.AAPaidShares, *o.AATotalShares)
	}
	return nil
}

func ensureMutable(o *model.Order) error {
	if o.IsTerminal() {
		return apierror.ErrOrderInvalidState.With("order %s is %s", o.ID, o.Status)
	}
	return nil
}

func touch(o *model.Order, meta Meta) {
	o.UpdatedAt = meta.Now
	o.Version++
}
