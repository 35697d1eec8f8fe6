package ledger

import (
	"sort"

	"settlepos/internal/apierror"
	"settlepos/internal/model"
	"settlepos/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SplitRequest is one of ItemSplit, AmountSplit or AASplit.
type SplitRequest interface {
	splitKind() string
}

// ItemLine selects Quantity unpaid units of an item instance.
type ItemLine struct {
	ItemID   uuid.UUID
	Quantity int
}

// ItemSplit pays for selected item units.
type ItemSplit struct {
	Lines []ItemLine
}

// AmountSplit pays an arbitrary amount of the remainder.
type AmountSplit struct {
	Amount decimal.Decimal
}

// AASplit pays PayShares even shares. TotalShares is only set by the first
// AA payment, which fixes the share count for the rest of the order.
type AASplit struct {
	TotalShares int
	PayShares   int
}

func (ItemSplit) splitKind() string   { return model.SplitItems }
func (AmountSplit) splitKind() string { return model.SplitAmount }
func (AASplit) splitKind() string     { return model.SplitAA }

// Quote is the amount a split request would charge, computed against the
// live remainder.
type Quote struct {
	Kind        string
	Amount      decimal.Decimal
	Allocations []model.SplitAllocation
	Shares      int
	TotalShares int
}

// QuoteSplit validates a split request and prices it without mutating o.
func QuoteSplit(o *model.Order, req SplitRequest) (Quote, error) {
	if err := ensureMutable(o); err != nil {
		return Quote{}, err
	}
	if money.IsSettled(o.RemainingAmount) {
		return Quote{}, apierror.ErrOrderPaid.With("order %s has nothing left to pay", o.ID)
	}
	switch r := req.(type) {
	case ItemSplit:
		if err := ensureNotEvenSplit(o); err != nil {
			return Quote{}, err
		}
		return quoteItems(o, r)
	case AmountSplit:
		if err := ensureNotEvenSplit(o); err != nil {
			return Quote{}, err
		}
		if err := checkAmount(o, r.Amount); err != nil {
			return Quote{}, err
		}
		return Quote{Kind: model.SplitAmount, Amount: r.Amount}, nil
	case AASplit:
		return quoteAA(o, r)
	}
	return Quote{}, apierror.ErrInvalidRequest.With("unknown split request %T", req)
}

func quoteItems(o *model.Order, r ItemSplit) (Quote, error) {
	if len(r.Lines) == 0 {
		return Quote{}, apierror.ErrInvalidRequest.With("no items selected")
	}
	wanted := map[uuid.UUID]int{}
	var order []uuid.UUID
	for _, l := range r.Lines {
		if _, seen := wanted[l.ItemID]; !seen {
			order = append(order, l.ItemID)
		}
		wanted[l.ItemID] += l.Quantity
	}

	q := Quote{Kind: model.SplitItems}
	f := adjustmentFactor(o)
	sum := decimal.Zero
	for _, id := range order {
		it, err := liveItem(o, id)
		if err != nil {
			return Quote{}, err
		}
		qty := wanted[id]
		payable := Payable(o, it)
		if qty < 1 || qty > payable {
			return Quote{}, apierror.ErrQuantityOutOfRange.With("item %s: %d of %d payable", id, qty, payable)
		}
		l := PriceLine(it)
		amount := money.Round(money.Mul(l.UnitPrice, qty).Mul(f))
		if qty == payable {
			// The slice covering the line's last unpaid unit absorbs the
			// rounding residue of earlier slices.
			amount = money.Round(l.Total.Mul(f)).Sub(allocatedAmount(o, id))
		}
		amount = money.Max(amount, decimal.Zero)
		q.Allocations = append(q.Allocations, model.SplitAllocation{ItemID: id, Quantity: qty, Amount: amount})
		sum = sum.Add(amount)
	}
	q.Amount = money.Round(sum)
	if coversAll(o, wanted) || q.Amount.GreaterThan(o.RemainingAmount) {
		q.Amount = o.RemainingAmount
	}
	if !q.Amount.IsPositive() {
		return Quote{}, apierror.ErrInvalidAmount.With("selected items are free")
	}
	return q, nil
}

// adjustmentFactor spreads the order-level discount and surcharge over item
// lines in proportion to their share of the items total.
func adjustmentFactor(o *model.Order) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if !o.ItemsTotal.IsPositive() || o.Total.Equal(o.ItemsTotal) {
		return one
	}
	return o.Total.Div(o.ItemsTotal)
}

// Payable is the number of units of an item still open for item splits.
func Payable(o *model.Order, it *model.OrderItem) int {
	if it.Removed {
		return 0
	}
	n := it.Quantity - it.CompQuantity - o.PaidQuantity(it.ID)
	if n < 0 {
		return 0
	}
	return n
}

func allocatedAmount(o *model.Order, itemID uuid.UUID) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range o.Splits {
		if s.Cancelled || s.Kind != model.SplitItems {
			continue
		}
		for _, a := range s.Allocations {
			if a.ItemID == itemID {
				sum = sum.Add(a.Amount)
			}
		}
	}
	return sum
}

// coversAll reports whether the selection pays every remaining payable unit
// of the order.
func coversAll(o *model.Order, wanted map[uuid.UUID]int) bool {
	for i := range o.Items {
		it := &o.Items[i]
		if p := Payable(o, it); p > 0 && wanted[it.ID] != p {
			return false
		}
	}
	return true
}

func quoteAA(o *model.Order, r AASplit) (Quote, error) {
	total := r.TotalShares
	if o.AATotalShares == nil {
		if total < 1 {
			return Quote{}, apierror.ErrAANotStarted.With("first even split needs total shares")
		}
		for _, s := range o.Splits {
			if !s.Cancelled {
				return Quote{}, apierror.ErrSplitModeLocked.With("order has active %s splits", s.Kind)
			}
		}
	} else {
		if total != 0 && total != *o.AATotalShares {
			return Quote{}, apierror.ErrSplitModeLocked.With("share count is fixed at %d", *o.AATotalShares)
		}
		total = *o.AATotalShares
	}
	left := total - o.AAPaidShares
	if r.PayShares < 1 || r.PayShares > left {
		return Quote{}, apierror.ErrQuantityOutOfRange.With("pay %d of %d shares left", r.PayShares, left)
	}
	return Quote{
		Kind:        model.SplitAA,
		Amount:      money.Share(o.RemainingAmount, left, r.PayShares),
		Shares:      r.PayShares,
		TotalShares: total,
	}, nil
}

// ApplySplit charges a split request with the given tender and records both
// the split and its payment.
func ApplySplit(o *model.Order, req SplitRequest, tender Tender, meta Meta) (*model.SplitRecord, *model.PaymentRecord, error) {
	q, err := QuoteSplit(o, req)
	if err != nil {
		return nil, nil, err
	}
	if q.Kind == model.SplitAA && o.AATotalShares == nil {
		n := q.TotalShares
		o.AATotalShares = &n
	}
	splitID := uuid.New()
	sort.SliceStable(q.Allocations, func(i, j int) bool {
		return o.ItemByID(q.Allocations[i].ItemID).Position < o.ItemByID(q.Allocations[j].ItemID).Position
	})
	o.Splits = append(o.Splits, model.SplitRecord{
		ID:          splitID,
		OrderID:     o.ID,
		Kind:        q.Kind,
		Allocations: q.Allocations,
		Amount:      q.Amount,
		Shares:      q.Shares,
		TotalShares: q.TotalShares,
		CreatedAt:   meta.Now,
	})
	p, err := recordPayment(o, q.Amount, tender, &splitID, meta)
	if err != nil {
		return nil, nil, err
	}
	s := o.SplitByID(splitID)
	s.PaymentID = p.ID
	return s, p, nil
}
