package ledger

import (
	"settlepos/internal/apierror"
	"settlepos/internal/model"

	"github.com/google/uuid"
)

// MatchKind tells the caller how a redemption would be applied.
type MatchKind string

const (
	// MatchItem comps an item already on the order.
	MatchItem MatchKind = "ITEM"
	// MatchAddReward adds the designated reward product as a comped line.
	MatchAddReward MatchKind = "ADD_REWARD"
	// MatchSelect asks the cashier to choose among Candidates.
	MatchSelect MatchKind = "SELECT"
)

// Match is the outcome of matching an activity against an order.
type Match struct {
	Kind       MatchKind
	Item       *model.OrderItem
	Candidates []*model.OrderItem
	// Bonus is the stamps this order itself will earn once completed.
	Bonus int
}

// MatchReward picks the item an activity's reward applies to. progress is the
// member's current stamp count for the activity.
func MatchReward(o *model.Order, a *model.StampActivity, progress int) (Match, error) {
	if o.MemberID == nil {
		return Match{}, apierror.ErrMemberRequired
	}
	if !a.Active {
		return Match{}, apierror.ErrActivityNotFound.With("activity %s inactive", a.ID)
	}
	if activeRedemption(o, a.ID) != nil {
		return Match{}, apierror.ErrStampAlreadyRedeemed.With("activity %s", a.ID)
	}
	bonus := StampsEarned(o, a)
	if progress+bonus < a.RequiredStamps {
		return Match{}, apierror.ErrStampsInsufficient.With("%d+%d of %d stamps", progress, bonus, a.RequiredStamps)
	}
	m := Match{Bonus: bonus}

	candidates := rewardCandidates(o, a)
	if a.Strategy == model.StrategyDesignated {
		if len(candidates) == 0 {
			if a.DesignatedProductID == nil {
				return Match{}, apierror.ErrNoEligibleItem.With("activity %s", a.ID)
			}
			m.Kind = MatchAddReward
			return m, nil
		}
		if a.AllowFreeSelection && len(candidates) > 1 {
			m.Kind, m.Candidates = MatchSelect, candidates
			return m, nil
		}
		m.Kind, m.Item = MatchItem, candidates[0]
		return m, nil
	}

	if len(candidates) == 0 {
		return Match{}, apierror.ErrNoEligibleItem.With("activity %s", a.ID)
	}
	if a.AllowFreeSelection && len(candidates) > 1 {
		m.Kind, m.Candidates = MatchSelect, candidates
		return m, nil
	}
	cheapest := a.Strategy == model.StrategyEconomizador
	best := candidates[0]
	var tied []*model.OrderItem
	for _, c := range candidates {
		cp, bp := c.OriginalUnitPrice(), best.OriginalUnitPrice()
		if (cheapest && cp.LessThan(bp)) || (!cheapest && cp.GreaterThan(bp)) {
			best = c
		}
	}
	for _, c := range candidates {
		if c.OriginalUnitPrice().Equal(best.OriginalUnitPrice()) {
			tied = append(tied, c)
		}
	}
	if len(tied) > 1 && progress+bonus > a.RequiredStamps {
		m.Kind, m.Candidates = MatchSelect, tied
		return m, nil
	}
	m.Kind, m.Item = MatchItem, best
	return m, nil
}

// rewardCandidates lists, in cart order, the live, un-comped items with
// unpaid units that the activity may reward.
func rewardCandidates(o *model.Order, a *model.StampActivity) []*model.OrderItem {
	var out []*model.OrderItem
	for i := range o.Items {
		it := &o.Items[i]
		if it.CompQuantity > 0 || Payable(o, it) == 0 {
			continue
		}
		if a.Strategy == model.StrategyDesignated && a.DesignatedProductID != nil {
			if it.ProductID == *a.DesignatedProductID {
				out = append(out, it)
			}
			continue
		}
		if targets(it, a.RewardProductIDs, a.RewardCategoryIDs) {
			out = append(out, it)
		}
	}
	return out
}

// StampsEarned counts the non-comped units of live items that earn stamps for
// the activity.
func StampsEarned(o *model.Order, a *model.StampActivity) int {
	n := 0
	for i := range o.Items {
		it := &o.Items[i]
		if it.Removed || it.RewardItem {
			continue
		}
		if targets(it, a.StampProductIDs, a.StampCategoryIDs) {
			n += it.Quantity - it.CompQuantity
		}
	}
	return n
}

func targets(it *model.OrderItem, products, categories []string) bool {
	if contains(products, it.ProductID.String()) {
		return true
	}
	return it.CategoryID != nil && contains(categories, it.CategoryID.String())
}

func activeRedemption(o *model.Order, activityID uuid.UUID) *model.StampRedemption {
	for i := range o.Redemptions {
		if r := &o.Redemptions[i]; !r.Cancelled && r.ActivityID == activityID {
			return r
		}
	}
	return nil
}

// Redemption is the input of RedeemStamp. Selected picks a candidate when the
// match asks for a selection; Reward is the designated product, required
// when the match adds a reward line.
type Redemption struct {
	Activity *model.StampActivity
	Progress int
	Selected *uuid.UUID
	Reward   *model.Product
}

// RedeemStamp applies an activity's reward to the order by comping the
// matched item, or adding the designated reward as a comped line.
func RedeemStamp(o *model.Order, in Redemption, meta Meta) (*model.StampRedemption, error) {
	if err := ensureMutable(o); err != nil {
		return nil, err
	}
	a := in.Activity
	m, err := MatchReward(o, a, in.Progress)
	if err != nil {
		return nil, err
	}
	reason := "stamp reward: " + a.Name
	red := model.StampRedemption{
		ID:         uuid.New(),
		OrderID:    o.ID,
		ActivityID: a.ID,
		RedeemedBy: meta.Actor,
		CreatedAt:  meta.Now,
	}

	var target *model.OrderItem
	switch m.Kind {
	case MatchAddReward:
		if in.Reward == nil || in.Reward.ID != *a.DesignatedProductID {
			return nil, apierror.ErrProductNotFound.With("designated reward product")
		}
		if !in.Reward.Active {
			return nil, apierror.ErrProductInactive.With("product %s", in.Reward.ID)
		}
		qty := a.RewardQuantity
		if qty < 1 {
			qty = 1
		}
		it := newItem(o, in.Reward, qty, meta)
		it.RewardItem = true
		it.CompQuantity = qty
		o.Items = append(o.Items, it)
		target = &o.Items[len(o.Items)-1]
		red.AddedItem = true
	case MatchSelect:
		if in.Selected == nil {
			return nil, apierror.ErrSelectionRequired.With("%d candidates", len(m.Candidates))
		}
		for _, c := range m.Candidates {
			if c.ID == *in.Selected {
				target = c
			}
		}
		if target == nil {
			return nil, apierror.ErrNoEligibleItem.With("item %s is not a candidate", *in.Selected)
		}
	default:
		target = m.Item
		if in.Selected != nil && *in.Selected != target.ID {
			return nil, apierror.ErrNoEligibleItem.With("item %s is not the matched reward", *in.Selected)
		}
	}

	qty := target.CompQuantity
	if !red.AddedItem {
		qty = a.RewardQuantity
		if qty < 1 {
			qty = 1
		}
		if p := Payable(o, target); qty > p {
			qty = p
		}
		target.CompQuantity += qty
	}
	red.ItemID = target.ID
	red.Quantity = qty
	by := meta.Actor
	target.CompReason, target.CompAuthorizer = &reason, &by

	o.Redemptions = append(o.Redemptions, red)
	if err := reprice(o, meta); err != nil {
		return nil, err
	}
	return &o.Redemptions[len(o.Redemptions)-1], nil
}

// CancelRedemption reverses an active redemption while the order is still
// open. A reward line added by the redemption is removed; otherwise the
// comped units are released.
func CancelRedemption(o *model.Order, activityID uuid.UUID, meta Meta) (*model.StampRedemption, error) {
	if o.Status != model.OrderOpen && o.Status != model.OrderPartiallyPaid {
		return nil, apierror.ErrOrderInvalidState.With("order %s is %s", o.ID, o.Status)
	}
	red := activeRedemption(o, activityID)
	if red == nil {
		return nil, apierror.ErrRedemptionNotFound.With("activity %s", activityID)
	}
	it := o.ItemByID(red.ItemID)
	if it == nil {
		return nil, apierror.ErrLedgerInvariant.With("redeemed item %s missing", red.ItemID)
	}
	if red.AddedItem {
		it.Removed = true
		now := meta.Now
		it.RemovedAt = &now
	} else {
		it.CompQuantity -= red.Quantity
		if it.CompQuantity < 0 {
			it.CompQuantity = 0
		}
		if it.CompQuantity == 0 {
			it.CompReason, it.CompAuthorizer = nil, nil
		}
	}
	red.Cancelled = true
	if err := reprice(o, meta); err != nil {
		return nil, err
	}
	return red, nil
}
