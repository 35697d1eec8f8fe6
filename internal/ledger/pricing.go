package ledger

import (
	"sort"
	"time"

	"settlepos/internal/apierror"
	"settlepos/internal/model"
	"settlepos/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	hundred       = decimal.NewFromInt(100)
	maxPercentage = hundred
)

// Line is the priced breakdown of one order item, following the fixed
// stacking order: rules, manual percent, comp. Every step is rounded.
type Line struct {
	Base           decimal.Decimal
	RuleDiscount   decimal.Decimal
	RuleSurcharge  decimal.Decimal
	AfterRules     decimal.Decimal
	ManualDiscount decimal.Decimal
	AfterManual    decimal.Decimal
	Comp           decimal.Decimal
	Total          decimal.Decimal
	// UnitPrice is the effective per-unit price used by item splits.
	UnitPrice decimal.Decimal
	Tax       decimal.Decimal
}

// PriceLine computes the breakdown of an item. Removed items price to zero.
func PriceLine(it *model.OrderItem) Line {
	if it.Removed || it.Quantity <= 0 {
		return Line{}
	}
	var l Line
	l.Base = money.Mul(it.OriginalUnitPrice(), it.Quantity)
	l.RuleDiscount = money.Min(money.Round(it.RuleDiscount), l.Base)
	l.RuleSurcharge = money.Round(it.RuleSurcharge)
	l.AfterRules = money.Round(l.Base.Sub(l.RuleDiscount).Add(l.RuleSurcharge))

	l.ManualDiscount = money.Percent(l.AfterRules, it.ManualDiscountPct)
	l.AfterManual = money.Round(l.AfterRules.Sub(l.ManualDiscount))

	l.Comp = money.Prorate(l.AfterManual, it.CompQuantity, it.Quantity)
	l.Total = money.Round(l.AfterManual.Sub(l.Comp))
	if it.CompQuantity >= it.Quantity {
		l.Comp = l.AfterManual
		l.Total = decimal.Zero
	}

	l.UnitPrice = money.Round(l.AfterManual.Div(decimal.NewFromInt(int64(it.Quantity))))
	if it.TaxRate.IsPositive() {
		l.Tax = money.Round(l.Total.Mul(it.TaxRate).Div(decimal.NewFromInt(1).Add(it.TaxRate)))
	}
	return l
}

// EvaluateRules returns the rule-derived discount and surcharge for a line
// priced at base. Stackable rules of a kind sum; among non-stackable rules of
// a kind only the highest priority one applies (ties by id).
func EvaluateRules(rules []model.PricingRule, it *model.OrderItem, base decimal.Decimal, at time.Time) (discount, surcharge decimal.Decimal, applied []string) {
	discount, surcharge = decimal.Zero, decimal.Zero
	for _, kind := range []string{model.RuleDiscount, model.RuleSurcharge} {
		var stackable []model.PricingRule
		var top *model.PricingRule
		for i := range rules {
			r := &rules[i]
			if r.Kind != kind || !ruleActive(r, at) || !ruleMatches(r, it) {
				continue
			}
			if r.Stackable {
				stackable = append(stackable, *r)
				continue
			}
			if top == nil || r.Priority > top.Priority ||
				(r.Priority == top.Priority && r.ID.String() < top.ID.String()) {
				top = r
			}
		}
		chosen := stackable
		if top != nil {
			chosen = append(chosen, *top)
		}
		sort.SliceStable(chosen, func(i, j int) bool { return chosen[i].Priority > chosen[j].Priority })
		sum := decimal.Zero
		for _, r := range chosen {
			sum = sum.Add(ruleAmount(&r, base, it.Quantity))
			applied = append(applied, r.ID.String())
		}
		sum = money.Round(sum)
		if kind == model.RuleDiscount {
			discount = money.Min(sum, base)
		} else {
			surcharge = sum
		}
	}
	return discount, surcharge, applied
}

func ruleAmount(r *model.PricingRule, base decimal.Decimal, qty int) decimal.Decimal {
	switch r.ValueType {
	case model.AdjustPercent:
		return money.Percent(base, r.Value)
	case model.AdjustFixed:
		return money.Mul(r.Value, qty)
	}
	return decimal.Zero
}

func ruleActive(r *model.PricingRule, at time.Time) bool {
	if !r.Active {
		return false
	}
	if r.ValidFrom != nil && at.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && at.After(*r.ValidUntil) {
		return false
	}
	if len(r.DaysOfWeek) > 0 {
		ok := false
		for _, d := range r.DaysOfWeek {
			if time.Weekday(d) == at.Weekday() {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if r.StartMinute != nil && r.EndMinute != nil {
		m := at.Hour()*60 + at.Minute()
		start, end := *r.StartMinute, *r.EndMinute
		if start <= end {
			return m >= start && m < end
		}
		return m >= start || m < end
	}
	return true
}

func ruleMatches(r *model.PricingRule, it *model.OrderItem) bool {
	switch r.Scope {
	case model.ScopeGlobal:
		return true
	case model.ScopeProduct:
		return contains(r.ScopeRefs, it.ProductID.String())
	case model.ScopeCategory:
		return it.CategoryID != nil && contains(r.ScopeRefs, it.CategoryID.String())
	case model.ScopeTag:
		for _, t := range it.Tags {
			if contains(r.ScopeRefs, t) {
				return true
			}
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Recalculate derives every total, paid quantities, AA paid shares and the
// split mode from items, adjustments, payments and splits.
func Recalculate(o *model.Order) {
	var subtotal, ruleDisc, ruleSurch, manual, comp, items, tax decimal.Decimal
	for i := range o.Items {
		l := PriceLine(&o.Items[i])
		subtotal = subtotal.Add(l.Base)
		ruleDisc = ruleDisc.Add(l.RuleDiscount)
		ruleSurch = ruleSurch.Add(l.RuleSurcharge)
		manual = manual.Add(l.ManualDiscount)
		comp = comp.Add(l.Comp)
		items = items.Add(l.Total)
		tax = tax.Add(l.Tax)
	}
	o.Subtotal = money.Round(subtotal)
	o.RuleDiscountTotal = money.Round(ruleDisc)
	o.RuleSurchargeTotal = money.Round(ruleSurch)
	o.ManualItemDiscountTotal = money.Round(manual)
	o.CompTotal = money.Round(comp)
	o.ItemsTotal = money.Round(items)

	o.OrderDiscountAmount = orderAdjustment(o.OrderDiscountKind, o.OrderDiscountValue, o.ItemsTotal)
	o.OrderDiscountAmount = money.Min(o.OrderDiscountAmount, o.ItemsTotal)
	o.OrderSurchargeAmount = orderAdjustment(o.OrderSurchargeKind, o.OrderSurchargeValue, o.ItemsTotal)
	o.Total = money.Round(o.ItemsTotal.Sub(o.OrderDiscountAmount).Add(o.OrderSurchargeAmount))

	o.TaxTotal = decimal.Zero
	if o.ItemsTotal.IsPositive() {
		o.TaxTotal = money.Round(tax.Mul(o.Total).Div(o.ItemsTotal))
	}

	paid := decimal.Zero
	for _, p := range o.Payments {
		if !p.Cancelled {
			paid = paid.Add(p.Amount)
		}
	}
	o.PaidAmount = money.Round(paid)
	o.RemainingAmount = money.Round(o.Total.Sub(o.PaidAmount))

	quantities := map[string]int{}
	aaPaid := 0
	hasItems, hasAmount := false, false
	for _, s := range o.Splits {
		if s.Cancelled {
			continue
		}
		switch s.Kind {
		case model.SplitItems:
			hasItems = true
			for _, a := range s.Allocations {
				quantities[a.ItemID.String()] += a.Quantity
			}
		case model.SplitAmount:
			hasAmount = true
		case model.SplitAA:
			aaPaid += s.Shares
		}
	}
	o.PaidQuantities = quantities
	o.AAPaidShares = aaPaid
	switch {
	case o.AATotalShares != nil:
		o.SplitMode = model.SplitModeAA
	case hasItems:
		o.SplitMode = model.SplitModeItems
	case hasAmount:
		o.SplitMode = model.SplitModeAmount
	default:
		o.SplitMode = model.SplitModeNone
	}
}

func orderAdjustment(kind *string, value *decimal.Decimal, base decimal.Decimal) decimal.Decimal {
	if kind == nil || value == nil {
		return decimal.Zero
	}
	switch *kind {
	case model.AdjustPercent:
		return money.Percent(base, *value)
	case model.AdjustFixed:
		return money.Round(*value)
	}
	return decimal.Zero
}

// Adjustment is an order-level manual discount or surcharge. A nil
// *Adjustment clears it.
type Adjustment struct {
	Kind  string
	Value decimal.Decimal
}

func validateAdjustment(a *Adjustment) error {
	if a == nil {
		return nil
	}
	if !a.Value.IsPositive() {
		return apierror.ErrInvalidAmount.With("adjustment value %s", a.Value)
	}
	switch a.Kind {
	case model.AdjustPercent:
		if a.Value.GreaterThan(maxPercentage) {
			return apierror.ErrInvalidAmount.With("percentage %s above 100", a.Value)
		}
	case model.AdjustFixed:
		if !a.Value.Equal(money.Round(a.Value)) {
			return apierror.ErrInvalidAmount.With("fixed value %s has sub-cent precision", a.Value)
		}
	default:
		return apierror.ErrInvalidRequest.With("adjustment kind %q", a.Kind)
	}
	return nil
}

// ApplyOrderDiscount sets or clears the order-level manual discount.
func ApplyOrderDiscount(o *model.Order, adj *Adjustment, meta Meta) error {
	if err := ensureMutable(o); err != nil {
		return err
	}
	if err := validateAdjustment(adj); err != nil {
		return err
	}
	if adj == nil {
		o.OrderDiscountKind, o.OrderDiscountValue, o.OrderDiscountBy = nil, nil, nil
	} else {
		kind, value, by := adj.Kind, adj.Value, meta.Authorizer
		o.OrderDiscountKind, o.OrderDiscountValue, o.OrderDiscountBy = &kind, &value, &by
	}
	return reprice(o, meta)
}

// ApplyOrderSurcharge sets or clears the order-level manual surcharge.
func ApplyOrderSurcharge(o *model.Order, adj *Adjustment, meta Meta) error {
	if err := ensureMutable(o); err != nil {
		return err
	}
	if err := validateAdjustment(adj); err != nil {
		return err
	}
	if adj == nil {
		o.OrderSurchargeKind, o.OrderSurchargeValue, o.OrderSurchargeBy = nil, nil, nil
	} else {
		kind, value, by := adj.Kind, adj.Value, meta.Authorizer
		o.OrderSurchargeKind, o.OrderSurchargeValue, o.OrderSurchargeBy = &kind, &value, &by
	}
	return reprice(o, meta)
}

// ApplyItemDiscount sets the manual discount percent of one item. Items with
// paid units keep their price.
func ApplyItemDiscount(o *model.Order, itemID uuid.UUID, pct decimal.Decimal, meta Meta) error {
	if err := ensureMutable(o); err != nil {
		return err
	}
	it, err := liveItem(o, itemID)
	if err != nil {
		return err
	}
	if pct.IsNegative() || pct.GreaterThan(maxPercentage) {
		return apierror.ErrInvalidAmount.With("item discount %s", pct)
	}
	if o.PaidQuantity(itemID) > 0 {
		return apierror.ErrItemLocked.With("item %s has paid units", itemID)
	}
	it.ManualDiscountPct = pct
	by := meta.Authorizer
	it.ManualDiscountBy = &by
	if pct.IsZero() {
		it.ManualDiscountBy = nil
	}
	return reprice(o, meta)
}

// CompItem marks qty unpaid, un-comped units of an item as complimentary.
func CompItem(o *model.Order, itemID uuid.UUID, qty int, reason string, meta Meta) error {
	if err := ensureMutable(o); err != nil {
		return err
	}
	if reason == "" {
		return apierror.ErrReasonRequired
	}
	it, err := liveItem(o, itemID)
	if err != nil {
		return err
	}
	free := it.Quantity - it.CompQuantity - o.PaidQuantity(itemID)
	if qty < 1 || qty > free {
		return apierror.ErrQuantityOutOfRange.With("comp %d of %d available", qty, free)
	}
	it.CompQuantity += qty
	r, by := reason, meta.Authorizer
	it.CompReason, it.CompAuthorizer = &r, &by
	return reprice(o, meta)
}

// UncompItem reverses qty comped units. Units reserved by an active stamp
// redemption are released through CancelRedemption instead.
func UncompItem(o *model.Order, itemID uuid.UUID, qty int, meta Meta) error {
	if err := ensureMutable(o); err != nil {
		return err
	}
	it, err := liveItem(o, itemID)
	if err != nil {
		return err
	}
	reserved := 0
	for _, r := range o.Redemptions {
		if !r.Cancelled && r.ItemID == itemID {
			reserved += r.Quantity
		}
	}
	if qty < 1 || qty > it.CompQuantity-reserved {
		return apierror.ErrQuantityOutOfRange.With("uncomp %d of %d comped", qty, it.CompQuantity-reserved)
	}
	it.CompQuantity -= qty
	if it.CompQuantity == 0 {
		it.CompReason, it.CompAuthorizer = nil, nil
	}
	return reprice(o, meta)
}

// reprice recomputes totals after a price change and rejects changes that
// would push the total below what has already been paid.
func reprice(o *model.Order, meta Meta) error {
	Recalculate(o)
	if o.RemainingAmount.IsNegative() {
		return apierror.ErrAdjustmentExceeds.With("total %s below paid %s", o.Total, o.PaidAmount)
	}
	touch(o, meta)
	return nil
}

func liveItem(o *model.Order, itemID uuid.UUID) (*model.OrderItem, error) {
	it := o.ItemByID(itemID)
	if it == nil {
		return nil, apierror.ErrItemNotFound.With("item %s", itemID)
	}
	if it.Removed {
		return nil, apierror.ErrItemRemoved.With("item %s", itemID)
	}
	return it, nil
}
