package service

import (
	"time"

	"settlepos/internal/dto"
	"settlepos/internal/ledger"
	"settlepos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func toOrderSnapshot(o *model.Order) dto.OrderSnapshot {
	snap := dto.OrderSnapshot{
		ID:              o.ID.String(),
		ReceiptNumber:   o.ReceiptNumber,
		Status:          o.Status,
		VoidKind:        o.VoidKind,
		VoidReason:      o.VoidReason,
		LossAmount:      o.LossAmount,
		Version:         o.Version,
		Items:           make([]dto.ItemSnapshot, 0, len(o.Items)),
		Payments:        make([]dto.PaymentSnapshot, 0, len(o.Payments)),
		Splits:          make([]dto.SplitSnapshot, 0, len(o.Splits)),
		Redemptions:     make([]dto.RedemptionSnapshot, 0, len(o.Redemptions)),
		SplitMode:       o.SplitMode,
		Subtotal:        o.Subtotal,
		RuleDiscount:    o.RuleDiscountTotal,
		RuleSurcharge:   o.RuleSurchargeTotal,
		ManualDiscount:  o.ManualItemDiscountTotal,
		CompTotal:       o.CompTotal,
		ItemsTotal:      o.ItemsTotal,
		TaxTotal:        o.TaxTotal,
		Total:           o.Total,
		PaidAmount:      o.PaidAmount,
		RemainingAmount: o.RemainingAmount,
		MemberID:        uuidStr(o.MemberID),
		MemberName:      o.MemberName,
		RelocatedTo:     uuidStr(o.RelocatedTo),
		CreatedBy:       o.CreatedBy.String(),
		CreatedAt:       formatTime(o.CreatedAt),
		UpdatedAt:       formatTime(o.UpdatedAt),
		CompletedAt:     timeStr(o.CompletedAt),
		VoidedAt:        timeStr(o.VoidedAt),
	}
	for i := range o.Items {
		snap.Items = append(snap.Items, toItemSnapshot(o, &o.Items[i]))
	}
	for _, p := range o.Payments {
		snap.Payments = append(snap.Payments, dto.PaymentSnapshot{
			ID:           p.ID.String(),
			Method:       p.Method,
			Amount:       p.Amount,
			Tendered:     p.Tendered,
			Change:       p.Change,
			SplitID:      uuidStr(p.SplitID),
			CreatedBy:    p.CreatedBy.String(),
			CreatedAt:    formatTime(p.CreatedAt),
			Cancelled:    p.Cancelled,
			CancelReason: p.CancelReason,
			CancelledBy:  uuidStr(p.CancelledBy),
		})
	}
	for _, s := range o.Splits {
		ss := dto.SplitSnapshot{
			ID:          s.ID.String(),
			Kind:        s.Kind,
			Amount:      s.Amount,
			Shares:      s.Shares,
			TotalShares: s.TotalShares,
			PaymentID:   s.PaymentID.String(),
			Cancelled:   s.Cancelled,
		}
		for _, a := range s.Allocations {
			ss.Allocations = append(ss.Allocations, dto.AllocationSnapshot{
				ItemID: a.ItemID.String(), Quantity: a.Quantity, Amount: a.Amount,
			})
		}
		snap.Splits = append(snap.Splits, ss)
	}
	for _, r := range o.Redemptions {
		snap.Redemptions = append(snap.Redemptions, dto.RedemptionSnapshot{
			ID:         r.ID.String(),
			ActivityID: r.ActivityID.String(),
			ItemID:     r.ItemID.String(),
			Quantity:   r.Quantity,
			AddedItem:  r.AddedItem,
			Cancelled:  r.Cancelled,
		})
	}
	snap.OrderDiscount = adjustmentSnapshot(o.OrderDiscountKind, o.OrderDiscountValue, o.OrderDiscountAmount, o.OrderDiscountBy)
	snap.OrderSurcharge = adjustmentSnapshot(o.OrderSurchargeKind, o.OrderSurchargeValue, o.OrderSurchargeAmount, o.OrderSurchargeBy)

	if o.AATotalShares != nil {
		aa := &dto.AASnapshot{TotalShares: *o.AATotalShares, PaidShares: o.AAPaidShares, NextShareAmount: decimal.Zero}
		if !o.IsTerminal() && o.AAPaidShares < *o.AATotalShares {
			if q, err := ledger.QuoteSplit(o, ledger.AASplit{PayShares: 1}); err == nil {
				aa.NextShareAmount = q.Amount
			}
		}
		snap.AA = aa
	}
	return snap
}

func toItemSnapshot(o *model.Order, it *model.OrderItem) dto.ItemSnapshot {
	line := ledger.PriceLine(it)
	options := make([]dto.OptionResponse, 0, len(it.Options))
	for _, opt := range it.Options {
		options = append(options, dto.OptionResponse{ID: opt.ID, Name: opt.Name, PriceDelta: opt.PriceDelta})
	}
	applied := it.AppliedRuleIDs
	if applied == nil {
		applied = []string{}
	}
	return dto.ItemSnapshot{
		ID:                it.ID.String(),
		Position:          it.Position,
		ProductID:         it.ProductID.String(),
		Name:              it.Name,
		Quantity:          it.Quantity,
		UnitPrice:         it.UnitPrice,
		OriginalUnitPrice: it.OriginalUnitPrice(),
		Options:           options,
		Base:              line.Base,
		RuleDiscount:      line.RuleDiscount,
		RuleSurcharge:     line.RuleSurcharge,
		AppliedRuleIDs:    applied,
		ManualDiscountPct: it.ManualDiscountPct,
		ManualDiscount:    line.ManualDiscount,
		CompQuantity:      it.CompQuantity,
		CompReason:        it.CompReason,
		CompAmount:        line.Comp,
		PaidQuantity:      o.PaidQuantity(it.ID),
		PayableQuantity:   ledger.Payable(o, it),
		EffectiveUnit:     line.UnitPrice,
		LineTotal:         line.Total,
		Tax:               line.Tax,
		RewardItem:        it.RewardItem,
		Removed:           it.Removed,
	}
}

func adjustmentSnapshot(kind *string, value *decimal.Decimal, amount decimal.Decimal, by *uuid.UUID) *dto.AdjustmentSnapshot {
	if kind == nil || value == nil {
		return nil
	}
	return &dto.AdjustmentSnapshot{Kind: *kind, Value: *value, Amount: amount, By: uuidStr(by)}
}

func uuidStr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func timeStr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
