package ledger

import (
	"settlepos/internal/apierror"
	"settlepos/internal/model"
	"settlepos/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxItemQuantity bounds the quantity of a single order line.
const MaxItemQuantity = 999

// AddItem appends a line priced from the catalog product. Rule adjustments
// are evaluated once, at meta.Now, and frozen on the line.
func AddItem(o *model.Order, p *model.Product, qty int, optionIDs []string, rules []model.PricingRule, meta Meta) (*model.OrderItem, error) {
	if err := ensureMutable(o); err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, apierror.ErrProductInactive.With("product %s", p.ID)
	}
	if qty < 1 || qty > MaxItemQuantity {
		return nil, apierror.ErrQuantityOutOfRange.With("quantity %d", qty)
	}
	it := newItem(o, p, qty, meta)
	for _, id := range optionIDs {
		opt, ok := p.OptionByID(id)
		if !ok {
			return nil, apierror.ErrOptionNotFound.With("option %s on product %s", id, p.ID)
		}
		it.Options = append(it.Options, model.ItemOption{ID: opt.ID, Name: opt.Name, PriceDelta: opt.PriceDelta})
	}
	base := money.Mul(it.OriginalUnitPrice(), qty)
	it.RuleDiscount, it.RuleSurcharge, it.AppliedRuleIDs = EvaluateRules(rules, &it, base, meta.Now)

	o.Items = append(o.Items, it)
	if err := reprice(o, meta); err != nil {
		return nil, err
	}
	return &o.Items[len(o.Items)-1], nil
}

func newItem(o *model.Order, p *model.Product, qty int, meta Meta) model.OrderItem {
	return model.OrderItem{
		ID:                uuid.New(),
		OrderID:           o.ID,
		Position:          len(o.Items),
		ProductID:         p.ID,
		CategoryID:        p.CategoryID,
		Tags:              append([]string(nil), p.Tags...),
		Name:              p.Name,
		Quantity:          qty,
		UnitPrice:         p.Price,
		TaxRate:           p.TaxRate,
		RuleDiscount:      decimal.Zero,
		RuleSurcharge:     decimal.Zero,
		ManualDiscountPct: decimal.Zero,
		CreatedAt:         meta.Now,
	}
}

// RemoveItem soft-deletes a line. Lines with paid or comped units, and reward
// lines, cannot be removed.
func RemoveItem(o *model.Order, itemID uuid.UUID, meta Meta) error {
	if err := ensureMutable(o); err != nil {
		return err
	}
	it, err := liveItem(o, itemID)
	if err != nil {
		return err
	}
	if o.PaidQuantity(itemID) > 0 || it.CompQuantity > 0 || it.RewardItem {
		return apierror.ErrItemLocked.With("item %s has paid, comped or reward units", itemID)
	}
	it.Removed = true
	now := meta.Now
	it.RemovedAt = &now
	return reprice(o, meta)
}

// LinkMember attaches a loyalty member to an open order.
func LinkMember(o *model.Order, m *model.Member, meta Meta) error {
	if err := ensureMutable(o); err != nil {
		return err
	}
	if !m.Active {
		return apierror.ErrMemberNotFound.With("member %s inactive", m.ID)
	}
	id, name := m.ID, m.Name
	o.MemberID, o.MemberName = &id, &name
	touch(o, meta)
	return nil
}

// UnlinkMember detaches the member. Active stamp redemptions must be
// cancelled first.
func UnlinkMember(o *model.Order, meta Meta) error {
	if err := ensureMutable(o); err != nil {
		return err
	}
	if o.MemberID == nil {
		return apierror.ErrMemberRequired
	}
	for _, r := range o.Redemptions {
		if !r.Cancelled {
			return apierror.ErrMemberInUse.With("redemption %s is active", r.ID)
		}
	}
	o.MemberID, o.MemberName = nil, nil
	touch(o, meta)
	return nil
}
