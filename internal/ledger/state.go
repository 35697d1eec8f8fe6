package ledger

import (
	"settlepos/internal/apierror"
	"settlepos/internal/model"
	"settlepos/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tender describes how a payment was captured. Tendered is only meaningful
// for cash and yields the change to hand back.
type Tender struct {
	Method   string
	Tendered *decimal.Decimal
}

func (t Tender) validate(amount decimal.Decimal) (change *decimal.Decimal, err error) {
	switch t.Method {
	case model.MethodCash:
		if t.Tendered == nil {
			return nil, nil
		}
		if t.Tendered.LessThan(amount) {
			return nil, apierror.ErrTenderInsufficient.With("tendered %s for %s", t.Tendered, amount)
		}
		c := money.Round(t.Tendered.Sub(amount))
		return &c, nil
	case model.MethodCard:
		if t.Tendered != nil {
			return nil, apierror.ErrInvalidMethod.With("card payments carry no tendered amount")
		}
		return nil, nil
	}
	return nil, apierror.ErrInvalidMethod.With("method %q", t.Method)
}

// AddPayment records a plain payment not tied to a split. Orders split
// evenly only take payAaSplit payments.
func AddPayment(o *model.Order, amount decimal.Decimal, tender Tender, meta Meta) (*model.PaymentRecord, error) {
	if err := ensureMutable(o); err != nil {
		return nil, err
	}
	if err := ensureNotEvenSplit(o); err != nil {
		return nil, err
	}
	if err := checkAmount(o, amount); err != nil {
		return nil, err
	}
	return recordPayment(o, amount, tender, nil, meta)
}

func ensureNotEvenSplit(o *model.Order) error {
	if o.AATotalShares != nil {
		return apierror.ErrSplitModeLocked.With("order is split evenly in %d shares", *o.AATotalShares)
	}
	return nil
}

func checkAmount(o *model.Order, amount decimal.Decimal) error {
	if money.IsSettled(o.RemainingAmount) {
		return apierror.ErrOrderPaid.With("order %s has nothing left to pay", o.ID)
	}
	if !amount.IsPositive() || !amount.Equal(money.Round(amount)) {
		return apierror.ErrInvalidAmount.With("amount %s", amount)
	}
	if amount.GreaterThan(o.RemainingAmount) {
		return apierror.ErrAmountExceedsRemaining.With("amount %s, remaining %s", amount, o.RemainingAmount)
	}
	return nil
}

// recordPayment appends the payment, recomputes and moves the order to
// PARTIALLY_PAID or COMPLETED. Capture is confirmed before the command
// arrives, so any method settles the order once the remainder is within
// tolerance.
func recordPayment(o *model.Order, amount decimal.Decimal, tender Tender, splitID *uuid.UUID, meta Meta) (*model.PaymentRecord, error) {
	change, err := tender.validate(amount)
	if err != nil {
		return nil, err
	}
	p := model.PaymentRecord{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Method:    tender.Method,
		Amount:    amount,
		Tendered:  tender.Tendered,
		Change:    change,
		SplitID:   splitID,
		CreatedBy: meta.Actor,
		CreatedAt: meta.Now,
	}
	o.Payments = append(o.Payments, p)
	Recalculate(o)
	if o.RemainingAmount.IsNegative() {
		return nil, apierror.ErrAmountExceedsRemaining.With("payment %s overpays", amount)
	}
	if money.IsSettled(o.RemainingAmount) {
		complete(o, meta)
	} else {
		o.Status = model.OrderPartiallyPaid
	}
	touch(o, meta)
	return &o.Payments[len(o.Payments)-1], nil
}

func complete(o *model.Order, meta Meta) {
	o.Status = model.OrderCompleted
	now := meta.Now
	o.CompletedAt = &now
}

// CompleteOrder closes an order whose remainder is within tolerance. When a
// tender is supplied the outstanding remainder is paid with it first, unless
// the order is split evenly.
func CompleteOrder(o *model.Order, tender *Tender, meta Meta) (*model.PaymentRecord, error) {
	if err := ensureMutable(o); err != nil {
		return nil, err
	}
	Recalculate(o)
	if money.IsSettled(o.RemainingAmount) {
		complete(o, meta)
		touch(o, meta)
		return nil, nil
	}
	if tender == nil {
		return nil, apierror.ErrBalanceOutstanding.With("remaining %s", o.RemainingAmount)
	}
	if err := ensureNotEvenSplit(o); err != nil {
		return nil, err
	}
	return recordPayment(o, o.RemainingAmount, *tender, nil, meta)
}

// CancelPayment reverses a payment. It is allowed on COMPLETED orders as an
// audit reversal; the order reopens. A split payment also cancels its split
// record, which returns its item quantities or AA shares.
func CancelPayment(o *model.Order, paymentID uuid.UUID, reason string, meta Meta) error {
	switch o.Status {
	case model.OrderOpen, model.OrderPartiallyPaid, model.OrderCompleted:
	default:
		return apierror.ErrOrderInvalidState.With("order %s is %s", o.ID, o.Status)
	}
	if reason == "" {
		return apierror.ErrReasonRequired
	}
	p := o.PaymentByID(paymentID)
	if p == nil {
		return apierror.ErrPaymentNotFound.With("payment %s", paymentID)
	}
	if p.Cancelled {
		return apierror.ErrPaymentCancelled.With("payment %s", paymentID)
	}
	now, by, r := meta.Now, meta.Authorizer, reason
	p.Cancelled, p.CancelReason, p.CancelledBy, p.CancelledAt = true, &r, &by, &now
	if p.SplitID != nil {
		if s := o.SplitByID(*p.SplitID); s != nil {
			s.Cancelled = true
		}
	}
	Recalculate(o)
	if o.PaidAmount.IsZero() {
		o.Status = model.OrderOpen
	} else {
		o.Status = model.OrderPartiallyPaid
	}
	o.CompletedAt = nil
	touch(o, meta)
	return nil
}

// VoidOrder closes an unfinished order. CANCELLED requires a reason;
// LOSS_SETTLED requires a partial payment and books the remainder as loss.
func VoidOrder(o *model.Order, kind, reason string, meta Meta) error {
	if err := ensureMutable(o); err != nil {
		return err
	}
	Recalculate(o)
	switch kind {
	case model.VoidCancelled:
		if reason == "" {
			return apierror.ErrReasonRequired
		}
		o.LossAmount = decimal.Zero
	case model.VoidLossSettled:
		if !o.PaidAmount.IsPositive() {
			return apierror.ErrOrderInvalidState.With("loss settlement needs a partial payment")
		}
		o.LossAmount = o.RemainingAmount
	default:
		return apierror.ErrInvalidRequest.With("void kind %q", kind)
	}
	k := kind
	o.VoidKind = &k
	if reason != "" {
		r := reason
		o.VoidReason = &r
	}
	now := meta.Now
	o.Status, o.VoidedAt = model.OrderVoid, &now
	touch(o, meta)
	return nil
}

// RelocateOrder closes an OPEN order that was merged into or moved to another
// order. Orders carrying active payments cannot be relocated.
func RelocateOrder(o *model.Order, status string, target uuid.UUID, meta Meta) error {
	if status != model.OrderMerged && status != model.OrderMoved {
		return apierror.ErrInvalidRequest.With("relocation status %q", status)
	}
	if o.Status != model.OrderOpen {
		return apierror.ErrOrderInvalidState.With("order %s is %s", o.ID, o.Status)
	}
	if target == o.ID {
		return apierror.ErrInvalidRequest.With("order cannot be relocated onto itself")
	}
	for _, p := range o.Payments {
		if !p.Cancelled {
			return apierror.ErrOrderInvalidState.With("order %s has active payments", o.ID)
		}
	}
	t := target
	o.Status, o.RelocatedTo = status, &t
	touch(o, meta)
	return nil
}
