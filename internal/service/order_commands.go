package service

import (
	"context"
	"errors"
	"time"

	"settlepos/internal/apierror"
	"settlepos/internal/dto"
	"settlepos/internal/ledger"
	"settlepos/internal/metrics"
	"settlepos/internal/model"
	"settlepos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// openLaneSpace namespaces the serializer key of openOrder commands, which
// have no order id yet.
var openLaneSpace = uuid.MustParse("6f1b7c52-4a8e-4d0e-9a57-3f0c2b1e9d44")

// ── Order lifecycle ───────────────────────────────────────────────────────────

func (s *orderService) OpenOrder(ctx context.Context, actor Actor, req dto.OpenOrderRequest) (snap *dto.OrderSnapshot, err error) {
	name := repository.OpenOrderCommand
	start := time.Now()
	replayed := false
	defer func() { metrics.ObserveCommand(name, replayed, err, time.Since(start)) }()

	if req.CommandID == "" {
		return nil, apierror.ErrInvalidRequest.With("command_id is required")
	}
	if snap, err = s.replayOpen(ctx, req.CommandID); snap != nil || err != nil {
		replayed = snap != nil
		return snap, err
	}
	if _, err := s.Authorizer.Authorize(ctx, actor, name, req.Override); err != nil {
		return nil, err
	}

	var (
		created      *model.Order
		result       *dto.OrderSnapshot
		lockedReplay bool
	)
	lane := uuid.NewSHA1(openLaneSpace, []byte(req.CommandID))
	err = s.Serializer.Do(ctx, lane, func(ctx context.Context) error {
		prior, err := s.replayOpen(ctx, req.CommandID)
		if prior != nil || err != nil {
			result, lockedReplay = prior, prior != nil
			return err
		}
		return runTx(ctx, s.Orders.DB(), func(tx *gorm.DB) error {
			receipt, err := s.Orders.NextReceiptNumber(ctx, tx)
			if err != nil {
				return apierror.ErrDatabase.Wrap(err)
			}
			meta := ledger.Meta{Actor: actor.ID, Authorizer: actor.ID, Now: s.Now().In(s.Location)}
			o := ledger.NewOrder(receipt, meta)
			if err := s.Orders.Create(ctx, tx, o); err != nil {
				return apierror.ErrDatabase.Wrap(err)
			}
			out, raw, err := encodeSnapshot(o)
			if err != nil {
				return err
			}
			rec := &model.CommandRecord{
				OrderID:   o.ID,
				CommandID: req.CommandID,
				Name:      name,
				ActorID:   actor.ID,
				Snapshot:  raw,
				CreatedAt: meta.Now,
			}
			if err := s.Commands.Create(ctx, tx, rec); err != nil {
				return apierror.ErrDatabase.Wrap(err)
			}
			created, result = o, out
			return nil
		})
	})
	if err != nil {
		return nil, asTxError(err)
	}
	snap, replayed = result, lockedReplay
	if replayed {
		return snap, nil
	}
	log.Info().Str("order_id", created.ID.String()).Int("receipt", created.ReceiptNumber).Str("command_id", req.CommandID).Msg("order opened")
	s.afterCommit(ctx, actor, actor.ID, &model.Order{ID: created.ID, Status: created.Status}, created, snap)
	return snap, nil
}

func (s *orderService) replayOpen(ctx context.Context, commandID string) (*dto.OrderSnapshot, error) {
	rec, err := s.Commands.FindOpen(ctx, commandID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.ErrDatabase.Wrap(err)
	}
	return s.replay(ctx, nil, rec.OrderID, commandID, repository.OpenOrderCommand)
}

func (s *orderService) VoidOrder(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.VoidOrderRequest) (*dto.OrderSnapshot, error) {
	return s.execute(ctx, actor, orderID, "voidOrder", req.Command, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		return ledger.VoidOrder(o, req.Kind, req.Reason, meta)
	})
}

func (s *orderService) RelocateOrder(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.RelocateOrderRequest) (*dto.OrderSnapshot, error) {
	target, err := parseID(req.TargetOrderID, "target_order_id")
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, actor, orderID, "relocateOrder", req.Command, func(ctx context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		if target == o.ID {
			return apierror.ErrInvalidRequest.With("order cannot be relocated onto itself")
		}
		dst, err := s.Orders.FindByID(ctx, target)
		if err != nil {
			return classify(err, apierror.ErrOrderNotFound)
		}
		if dst.IsTerminal() {
			return apierror.ErrOrderInvalidState.With("target order %s is %s", dst.ID, dst.Status)
		}
		return ledger.RelocateOrder(o, req.Status, target, meta)
	})
}

// ── Items ─────────────────────────────────────────────────────────────────────

func (s *orderService) AddItem(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.AddItemRequest) (*dto.OrderSnapshot, error) {
	productID, err := parseID(req.ProductID, "product_id")
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, actor, orderID, "addItem", req.Command, func(ctx context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		p, err := s.Products.FindByID(ctx, productID)
		if err != nil {
			return classify(err, apierror.ErrProductNotFound)
		}
		rules, err := s.Rules.ListActive(ctx)
		if err != nil {
			return apierror.ErrDatabase.Wrap(err)
		}
		_, err = ledger.AddItem(o, p, req.Quantity, req.OptionIDs, rules, meta)
		return err
	})
}

func (s *orderService) RemoveItem(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.RemoveItemRequest) (*dto.OrderSnapshot, error) {
	itemID, err := parseID(req.ItemID, "item_id")
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, actor, orderID, "removeItem", req.Command, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		return ledger.RemoveItem(o, itemID, meta)
	})
}

// ── Discounts, surcharges and comps ───────────────────────────────────────────

func (s *orderService) ApplyItemDiscount(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.ItemDiscountRequest) (*dto.OrderSnapshot, error) {
	itemID, err := parseID(req.ItemID, "item_id")
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, actor, orderID, "applyItemDiscount", req.Command, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		return ledger.ApplyItemDiscount(o, itemID, req.Percent, meta)
	})
}

func (s *orderService) ApplyOrderDiscount(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.AdjustmentRequest) (*dto.OrderSnapshot, error) {
	adj, err := toAdjustment(req)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, actor, orderID, "applyOrderDiscount", req.Command, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		return ledger.ApplyOrderDiscount(o, adj, meta)
	})
}

func (s *orderService) ApplyOrderSurcharge(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.AdjustmentRequest) (*dto.OrderSnapshot, error) {
	adj, err := toAdjustment(req)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, actor, orderID, "applyOrderSurcharge", req.Command, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		return ledger.ApplyOrderSurcharge(o, adj, meta)
	})
}

// toAdjustment returns nil (clear) when both kind and value are omitted.
func toAdjustment(req dto.AdjustmentRequest) (*ledger.Adjustment, error) {
	switch {
	case req.Kind == nil && req.Value == nil:
		return nil, nil
	case req.Kind == nil:
		return nil, apierror.ErrValidation.WithFields(map[string]string{"kind": "required_with"})
	case req.Value == nil:
		return nil, apierror.ErrValidation.WithFields(map[string]string{"value": "required_with"})
	}
	return &ledger.Adjustment{Kind: *req.Kind, Value: *req.Value}, nil
}

func (s *orderService) CompItem(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.CompItemRequest) (*dto.OrderSnapshot, error) {
	itemID, err := parseID(req.ItemID, "item_id")
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, actor, orderID, "compItem", req.Command, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		return ledger.CompItem(o, itemID, req.Quantity, req.Reason, meta)
	})
}

func (s *orderService) UncompItem(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.UncompItemRequest) (*dto.OrderSnapshot, error) {
	itemID, err := parseID(req.ItemID, "item_id")
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, actor, orderID, "uncompItem", req.Command, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		return ledger.UncompItem(o, itemID, req.Quantity, meta)
	})
}

// ── Payments and splits ───────────────────────────────────────────────────────

func toTender(t dto.TenderRequest) ledger.Tender {
	return ledger.Tender{Method: t.Method, Tendered: t.Tendered}
}

func (s *orderService) SplitByItems(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.SplitByItemsRequest) (*dto.OrderSnapshot, error) {
	split := ledger.ItemSplit{Lines: make([]ledger.ItemLine, 0, len(req.Items))}
	for _, line := range req.Items {
		id, err := parseID(line.ItemID, "items.item_id")
		if err != nil {
			return nil, err
		}
		split.Lines = append(split.Lines, ledger.ItemLine{ItemID: id, Quantity: line.Quantity})
	}
	return s.split(ctx, actor, orderID, "splitByItems", req.Command, split, req.Tender)
}

func (s *orderService) SplitByAmount(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.SplitByAmountRequest) (*dto.OrderSnapshot, error) {
	return s.split(ctx, actor, orderID, "splitByAmount", req.Command, ledger.AmountSplit{Amount: req.Amount}, req.Tender)
}

func (s *orderService) StartAASplit(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.StartAASplitRequest) (*dto.OrderSnapshot, error) {
	return s.split(ctx, actor, orderID, "startAaSplit", req.Command, ledger.AASplit{TotalShares: req.TotalShares, PayShares: req.PayShares}, req.Tender)
}

func (s *orderService) PayAASplit(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.PayAASplitRequest) (*dto.OrderSnapshot, error) {
	return s.split(ctx, actor, orderID, "payAaSplit", req.Command, ledger.AASplit{PayShares: req.PayShares}, req.Tender)
}

func (s *orderService) split(ctx context.Context, actor Actor, orderID uuid.UUID, name string, cmd dto.Command, req ledger.SplitRequest, tender dto.TenderRequest) (*dto.OrderSnapshot, error) {
	return s.execute(ctx, actor, orderID, name, cmd, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		_, _, err := ledger.ApplySplit(o, req, toTender(tender), meta)
		return err
	})
}

func (s *orderService) AddPayment(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.AddPaymentRequest) (*dto.OrderSnapshot, error) {
	return s.execute(ctx, actor, orderID, "addPayment", req.Command, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		_, err := ledger.AddPayment(o, req.Amount, toTender(req.Tender), meta)
		return err
	})
}

func (s *orderService) CompleteOrder(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.CompleteOrderRequest) (*dto.OrderSnapshot, error) {
	var tender *ledger.Tender
	if req.Tender != nil {
		t := toTender(*req.Tender)
		tender = &t
	}
	return s.execute(ctx, actor, orderID, "completeOrder", req.Command, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		_, err := ledger.CompleteOrder(o, tender, meta)
		return err
	})
}

func (s *orderService) CancelPayment(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.CancelPaymentRequest) (*dto.OrderSnapshot, error) {
	paymentID, err := parseID(req.PaymentID, "payment_id")
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, actor, orderID, "cancelPayment", req.Command, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		return ledger.CancelPayment(o, paymentID, req.Reason, meta)
	})
}

// ── Members and stamps ────────────────────────────────────────────────────────

func (s *orderService) LinkMember(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.LinkMemberRequest) (*dto.OrderSnapshot, error) {
	return s.execute(ctx, actor, orderID, "linkMember", req.Command, func(ctx context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		m, err := s.Members.FindByCode(ctx, req.MemberCode)
		if err != nil {
			return classify(err, apierror.ErrMemberNotFound)
		}
		return ledger.LinkMember(o, m, meta)
	})
}

func (s *orderService) UnlinkMember(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.UnlinkMemberRequest) (*dto.OrderSnapshot, error) {
	return s.execute(ctx, actor, orderID, "unlinkMember", req.Command, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		return ledger.UnlinkMember(o, meta)
	})
}

func (s *orderService) RedeemStamp(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.RedeemStampRequest) (*dto.OrderSnapshot, error) {
	activityID, err := parseID(req.ActivityID, "activity_id")
	if err != nil {
		return nil, err
	}
	var selected *uuid.UUID
	if req.ItemID != nil {
		id, err := parseID(*req.ItemID, "item_id")
		if err != nil {
			return nil, err
		}
		selected = &id
	}
	return s.execute(ctx, actor, orderID, "redeemStamp", req.Command, func(ctx context.Context, tx *gorm.DB, o *model.Order, meta ledger.Meta) error {
		a, err := s.Stamps.FindActivity(ctx, activityID)
		if err != nil {
			return classify(err, apierror.ErrActivityNotFound)
		}
		progress, err := s.availableStamps(ctx, tx, o, a)
		if err != nil {
			return err
		}
		in := ledger.Redemption{Activity: a, Progress: progress, Selected: selected}
		if a.DesignatedProductID != nil {
			p, err := s.Products.FindByID(ctx, *a.DesignatedProductID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return apierror.ErrDatabase.Wrap(err)
			}
			if err == nil {
				in.Reward = p
			}
		}
		_, err = ledger.RedeemStamp(o, in, meta)
		return err
	})
}

func (s *orderService) CancelStampRedemption(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.CancelStampRequest) (*dto.OrderSnapshot, error) {
	activityID, err := parseID(req.ActivityID, "activity_id")
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, actor, orderID, "cancelStampRedemption", req.Command, func(_ context.Context, _ *gorm.DB, o *model.Order, meta ledger.Meta) error {
		_, err := ledger.CancelRedemption(o, activityID, meta)
		return err
	})
}
