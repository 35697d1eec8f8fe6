package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"settlepos/internal/apierror"
	"settlepos/internal/dto"
	"settlepos/internal/infra"
	"settlepos/internal/model"
	"settlepos/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ── Harness ──────────────────────────────────────────────────────────────────

type harness struct {
	svc      OrderService
	orders   *stubOrders
	commands *stubCommands
	stamps   *stubStamps
	rec      *recorder
	coffee   *model.Product
	steak    *model.Product
	activity model.StampActivity
	member   *model.Member
	cashier  Actor
	manager  Actor
	sup      *model.Staff
}

const supPassword = "s3cret"

func newHarness(t *testing.T) *harness {
	t.Helper()
	coffee := &model.Product{ID: uuid.New(), SKU: "COF", Name: "Coffee", Price: money.MustParse("10.00"), Active: true}
	steak := &model.Product{ID: uuid.New(), SKU: "STK", Name: "Steak", Price: money.MustParse("100.00"), Active: true}
	activity := model.StampActivity{
		ID:               uuid.New(),
		Name:             "coffee card",
		Strategy:         model.StrategyGenerous,
		RequiredStamps:   3,
		RewardQuantity:   1,
		RewardProductIDs: []string{coffee.ID.String()},
		StampProductIDs:  []string{coffee.ID.String()},
		Active:           true,
	}
	member := &model.Member{ID: uuid.New(), Code: "M-1", Name: "Ana", Active: true}

	hash, err := bcrypt.GenerateFromPassword([]byte(supPassword), bcrypt.MinCost)
	require.NoError(t, err)
	sup := &model.Staff{ID: uuid.New(), Username: "sup", Name: "Sup", PasswordHash: string(hash), Role: model.RoleSupervisor, Active: true}
	staff := &stubStaff{users: []*model.Staff{sup}}

	h := &harness{
		orders:   newStubOrders(),
		commands: &stubCommands{},
		stamps:   &stubStamps{activities: []model.StampActivity{activity}, progress: map[string]int{}},
		rec:      &recorder{},
		coffee:   coffee,
		steak:    steak,
		activity: activity,
		member:   member,
		cashier:  Actor{ID: uuid.New(), Username: "ana", Role: model.RoleCashier},
		manager:  Actor{ID: uuid.New(), Username: "boss", Role: model.RoleManager},
		sup:      sup,
	}
	h.stamps.orders = h.orders
	h.svc = NewOrderService(OrderDeps{
		Orders:    h.orders,
		Commands:  h.commands,
		Products:  &stubProducts{byID: map[uuid.UUID]*model.Product{coffee.ID: coffee, steak.ID: steak}},
		Rules:     &stubRules{},
		Stamps:    h.stamps,
		Members:   &stubMembers{byCode: map[string]*model.Member{"M-1": member}},
		Staff:     staff,
		Snapshots: h.rec,
		Events:    eventRecorder{h.rec},
		Jobs:      h.rec,
		Now:       func() time.Time { return time.Date(2026, 3, 4, 12, 30, 0, 0, time.UTC) },
	})
	return h
}

func cmd() dto.Command { return dto.Command{CommandID: uuid.NewString()} }

func (h *harness) open(t *testing.T) uuid.UUID {
	t.Helper()
	snap, err := h.svc.OpenOrder(context.Background(), h.cashier, dto.OpenOrderRequest{Command: cmd()})
	require.NoError(t, err)
	return uuid.MustParse(snap.ID)
}

func (h *harness) add(t *testing.T, orderID uuid.UUID, p *model.Product, qty int) *dto.OrderSnapshot {
	t.Helper()
	snap, err := h.svc.AddItem(context.Background(), h.cashier, orderID, dto.AddItemRequest{
		Command: cmd(), ProductID: p.ID.String(), Quantity: qty,
	})
	require.NoError(t, err)
	return snap
}

func tender(method string, tendered ...string) dto.TenderRequest {
	t := dto.TenderRequest{Method: method}
	if len(tendered) > 0 {
		d := money.MustParse(tendered[0])
		t.Tendered = &d
	}
	return t
}

func amount(s string) decimal.Decimal { return money.MustParse(s) }

// ── Idempotency ──────────────────────────────────────────────────────────────

func TestOpenOrder_ReplayReturnsSameOrder(t *testing.T) {
	h := newHarness(t)
	req := dto.OpenOrderRequest{Command: cmd()}

	first, err := h.svc.OpenOrder(context.Background(), h.cashier, req)
	require.NoError(t, err)
	second, err := h.svc.OpenOrder(context.Background(), h.cashier, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1001, first.ReceiptNumber)
	assert.Len(t, h.orders.orders, 1)
	assert.Equal(t, 1, h.commands.count())
}

func TestCommand_ReplayDoesNotMutate(t *testing.T) {
	h := newHarness(t)
	id := h.open(t)
	req := dto.AddItemRequest{Command: cmd(), ProductID: h.coffee.ID.String(), Quantity: 2}

	first, err := h.svc.AddItem(context.Background(), h.cashier, id, req)
	require.NoError(t, err)
	saves := h.orders.saves
	second, err := h.svc.AddItem(context.Background(), h.cashier, id, req)
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, saves, h.orders.saves)
	assert.Len(t, h.orders.get(id).Items, 1)
	assert.Equal(t, "20.00", h.orders.get(id).Total.StringFixed(2))
}

func TestCommand_ReusedIDForAnotherCommand(t *testing.T) {
	h := newHarness(t)
	id := h.open(t)
	c := cmd()
	_, err := h.svc.AddItem(context.Background(), h.cashier, id, dto.AddItemRequest{Command: c, ProductID: h.coffee.ID.String(), Quantity: 1})
	require.NoError(t, err)

	_, err = h.svc.AddPayment(context.Background(), h.cashier, id, dto.AddPaymentRequest{Command: c, Amount: amount("1.00"), Tender: tender("card")})
	assert.ErrorIs(t, err, apierror.ErrCommandReused)
}

func TestCommand_FailureLeavesOrderUntouched(t *testing.T) {
	h := newHarness(t)
	id := h.open(t)
	h.add(t, id, h.coffee, 1)
	before := h.orders.get(id)
	records := h.commands.count()

	_, err := h.svc.AddPayment(context.Background(), h.cashier, id, dto.AddPaymentRequest{
		Command: cmd(), Amount: amount("999.00"), Tender: tender("card"),
	})
	assert.ErrorIs(t, err, apierror.ErrAmountExceedsRemaining)

	after := h.orders.get(id)
	assert.Equal(t, before.Version, after.Version)
	assert.Empty(t, after.Payments)
	assert.Equal(t, records, h.commands.count())
}

func TestCommand_UnknownOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.RemoveItem(context.Background(), h.cashier, uuid.New(), dto.RemoveItemRequest{Command: cmd(), ItemID: uuid.NewString()})
	assert.ErrorIs(t, err, apierror.ErrOrderNotFound)

	_, err = h.svc.GetOrder(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apierror.ErrOrderNotFound)
}

// ── Authorization ────────────────────────────────────────────────────────────

func TestCompItem_NeedsSupervisorOverride(t *testing.T) {
	h := newHarness(t)
	id := h.open(t)
	snap := h.add(t, id, h.coffee, 2)
	itemID := snap.Items[0].ID
	ctx := context.Background()

	_, err := h.svc.CompItem(ctx, h.cashier, id, dto.CompItemRequest{Command: cmd(), ItemID: itemID, Quantity: 1, Reason: "cold"})
	assert.ErrorIs(t, err, apierror.ErrEscalationRequired)

	bad := cmd()
	bad.Override = &dto.Override{Username: "sup", Password: "nope"}
	_, err = h.svc.CompItem(ctx, h.cashier, id, dto.CompItemRequest{Command: bad, ItemID: itemID, Quantity: 1, Reason: "cold"})
	assert.ErrorIs(t, err, apierror.ErrOverrideRejected)

	good := cmd()
	good.Override = &dto.Override{Username: "sup", Password: supPassword}
	snap, err = h.svc.CompItem(ctx, h.cashier, id, dto.CompItemRequest{Command: good, ItemID: itemID, Quantity: 1, Reason: "cold"})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Items[0].CompQuantity)
	assert.Equal(t, "10.00", snap.Total.StringFixed(2))

	stored := h.orders.get(id)
	require.NotNil(t, stored.Items[0].CompAuthorizer)
	assert.Equal(t, h.sup.ID, *stored.Items[0].CompAuthorizer)
}

func TestCommand_PermissionDenied(t *testing.T) {
	h := newHarness(t)
	id := h.open(t)
	guest := Actor{ID: uuid.New(), Username: "guest", Role: "guest"}

	_, err := h.svc.AddItem(context.Background(), guest, id, dto.AddItemRequest{Command: cmd(), ProductID: h.coffee.ID.String(), Quantity: 1})
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
}

// ── Payments and side effects ────────────────────────────────────────────────

func TestCashPayment_KicksDrawerAndCompletes(t *testing.T) {
	h := newHarness(t)
	id := h.open(t)
	h.add(t, id, h.coffee, 2)

	snap, err := h.svc.AddPayment(context.Background(), h.cashier, id, dto.AddPaymentRequest{
		Command: cmd(), Amount: amount("20.00"), Tender: tender("cash", "50.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, snap.Status)

	require.Len(t, h.rec.kicks, 1)
	assert.Equal(t, "20.00", h.rec.kicks[0].Amount)
	assert.Equal(t, "30.00", h.rec.kicks[0].Change)
	assert.Equal(t, []string{infra.EventOrderCompleted}, h.rec.events)
	assert.Equal(t, 3, h.rec.snapshots)
}

func TestLossSettlement_SendsNotice(t *testing.T) {
	h := newHarness(t)
	id := h.open(t)
	h.add(t, id, h.steak, 1)
	_, err := h.svc.AddPayment(context.Background(), h.cashier, id, dto.AddPaymentRequest{
		Command: cmd(), Amount: amount("40.00"), Tender: tender("card"),
	})
	require.NoError(t, err)

	snap, err := h.svc.VoidOrder(context.Background(), h.manager, id, dto.VoidOrderRequest{
		Command: cmd(), Kind: model.VoidLossSettled, Reason: "walked out",
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderVoid, snap.Status)
	assert.Equal(t, "60.00", snap.LossAmount.StringFixed(2))

	require.Len(t, h.rec.losses, 1)
	assert.Equal(t, "60.00", h.rec.losses[0].Loss)
	assert.Equal(t, "boss", h.rec.losses[0].SettledBy)
	assert.Contains(t, h.rec.events, infra.EventOrderVoided)
	assert.Empty(t, h.rec.kicks)
}

func TestConcurrentPayments_AreSerialized(t *testing.T) {
	h := newHarness(t)
	id := h.open(t)
	h.add(t, id, h.coffee, 1)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.AddPayment(context.Background(), h.cashier, id, dto.AddPaymentRequest{
				Command: cmd(), Amount: amount("1.00"), Tender: tender("card"),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	o := h.orders.get(id)
	assert.Equal(t, model.OrderCompleted, o.Status)
	assert.Equal(t, "10.00", o.PaidAmount.StringFixed(2))
	assert.Len(t, o.Payments, 10)
}

func TestSplits_ThroughService(t *testing.T) {
	h := newHarness(t)
	id := h.open(t)
	snap := h.add(t, id, h.coffee, 3)
	ctx := context.Background()

	snap, err := h.svc.SplitByItems(ctx, h.cashier, id, dto.SplitByItemsRequest{
		Command: cmd(),
		Items:   []dto.SplitLineRequest{{ItemID: snap.Items[0].ID, Quantity: 1}},
		Tender:  tender("card"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Items[0].PaidQuantity)
	assert.Equal(t, "20.00", snap.RemainingAmount.StringFixed(2))

	_, err = h.svc.StartAASplit(ctx, h.cashier, id, dto.StartAASplitRequest{Command: cmd(), TotalShares: 2, PayShares: 1, Tender: tender("card")})
	assert.ErrorIs(t, err, apierror.ErrSplitModeLocked)

	snap, err = h.svc.SplitByAmount(ctx, h.cashier, id, dto.SplitByAmountRequest{Command: cmd(), Amount: amount("20.00"), Tender: tender("card")})
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, snap.Status)
}

func TestAASplit_ThroughService(t *testing.T) {
	h := newHarness(t)
	id := h.open(t)
	h.add(t, id, h.steak, 1)
	ctx := context.Background()

	_, err := h.svc.PayAASplit(ctx, h.cashier, id, dto.PayAASplitRequest{Command: cmd(), PayShares: 1, Tender: tender("card")})
	assert.ErrorIs(t, err, apierror.ErrAANotStarted)

	snap, err := h.svc.StartAASplit(ctx, h.cashier, id, dto.StartAASplitRequest{Command: cmd(), TotalShares: 3, PayShares: 1, Tender: tender("card")})
	require.NoError(t, err)
	require.NotNil(t, snap.AA)
	assert.Equal(t, "33.33", snap.PaidAmount.StringFixed(2))
	assert.Equal(t, "33.34", snap.AA.NextShareAmount.StringFixed(2))

	snap, err = h.svc.PayAASplit(ctx, h.cashier, id, dto.PayAASplitRequest{Command: cmd(), PayShares: 2, Tender: tender("card")})
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, snap.Status)
	assert.Equal(t, 3, snap.AA.PaidShares)
}

// ── Stamps ───────────────────────────────────────────────────────────────────

func (h *harness) linkMember(t *testing.T, id uuid.UUID) {
	t.Helper()
	_, err := h.svc.LinkMember(context.Background(), h.cashier, id, dto.LinkMemberRequest{Command: cmd(), MemberCode: "M-1"})
	require.NoError(t, err)
}

func TestStamps_CreditedOnCompletionAndReversedOnReopen(t *testing.T) {
	h := newHarness(t)
	id := h.open(t)
	h.linkMember(t, id)
	h.add(t, id, h.coffee, 2)
	ctx := context.Background()

	snap, err := h.svc.AddPayment(ctx, h.cashier, id, dto.AddPaymentRequest{Command: cmd(), Amount: amount("20.00"), Tender: tender("card")})
	require.NoError(t, err)
	require.Equal(t, model.OrderCompleted, snap.Status)

	_, err = h.svc.CancelPayment(ctx, h.manager, id, dto.CancelPaymentRequest{
		Command: cmd(), PaymentID: snap.Payments[0].ID, Reason: "wrong card",
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2, -2}, h.stamps.deltas)
	assert.Zero(t, h.stamps.progress[progressKey(h.member.ID, h.activity.ID)])
}

func TestRedeemStamp_DebitsRequiredStamps(t *testing.T) {
	h := newHarness(t)
	h.stamps.progress[progressKey(h.member.ID, h.activity.ID)] = 2
	id := h.open(t)
	h.linkMember(t, id)
	h.add(t, id, h.coffee, 2)
	ctx := context.Background()

	match, err := h.svc.MatchStamp(ctx, id, dto.StampMatchQuery{ActivityID: h.activity.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "ITEM", match.Kind)
	assert.Equal(t, 2, match.CurrentStamps)
	assert.Equal(t, 2, match.BonusStamps)

	snap, err := h.svc.RedeemStamp(ctx, h.cashier, id, dto.RedeemStampRequest{Command: cmd(), ActivityID: h.activity.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "10.00", snap.Total.StringFixed(2))
	require.Len(t, snap.Redemptions, 1)

	_, err = h.svc.UnlinkMember(ctx, h.cashier, id, dto.UnlinkMemberRequest{Command: cmd()})
	assert.ErrorIs(t, err, apierror.ErrMemberInUse)

	_, err = h.svc.AddPayment(ctx, h.cashier, id, dto.AddPaymentRequest{Command: cmd(), Amount: amount("10.00"), Tender: tender("card")})
	require.NoError(t, err)

	// one stamp earned on the paid unit, three spent on the reward
	assert.Equal(t, []int{-2}, h.stamps.deltas)
	assert.Zero(t, h.stamps.progress[progressKey(h.member.ID, h.activity.ID)])
}

func TestRedeemStamp_BalanceNotSharedAcrossOpenOrders(t *testing.T) {
	h := newHarness(t)
	h.stamps.progress[progressKey(h.member.ID, h.activity.ID)] = 3
	ctx := context.Background()
	first, second := h.open(t), h.open(t)
	for _, id := range []uuid.UUID{first, second} {
		h.linkMember(t, id)
		h.add(t, id, h.steak, 1)
		h.add(t, id, h.coffee, 1)
	}
	redeem := func(id uuid.UUID) (*dto.OrderSnapshot, error) {
		return h.svc.RedeemStamp(ctx, h.cashier, id, dto.RedeemStampRequest{Command: cmd(), ActivityID: h.activity.ID.String()})
	}

	_, err := redeem(first)
	require.NoError(t, err)

	// Three stamps are held by the first order; the second has none left.
	match, err := h.svc.MatchStamp(ctx, second, dto.StampMatchQuery{ActivityID: h.activity.ID.String()})
	assert.ErrorIs(t, err, apierror.ErrStampsInsufficient)
	assert.Nil(t, match)
	_, err = redeem(second)
	assert.ErrorIs(t, err, apierror.ErrStampsInsufficient)

	// Releasing the first redemption frees the balance.
	_, err = h.svc.CancelStampRedemption(ctx, h.cashier, first, dto.CancelStampRequest{Command: cmd(), ActivityID: h.activity.ID.String()})
	require.NoError(t, err)
	_, err = redeem(second)
	require.NoError(t, err)
}

func TestCancelStampRedemption_RestoresPrice(t *testing.T) {
	h := newHarness(t)
	h.stamps.progress[progressKey(h.member.ID, h.activity.ID)] = 5
	id := h.open(t)
	h.linkMember(t, id)
	h.add(t, id, h.coffee, 1)
	ctx := context.Background()

	_, err := h.svc.RedeemStamp(ctx, h.cashier, id, dto.RedeemStampRequest{Command: cmd(), ActivityID: h.activity.ID.String()})
	require.NoError(t, err)
	snap, err := h.svc.CancelStampRedemption(ctx, h.cashier, id, dto.CancelStampRequest{Command: cmd(), ActivityID: h.activity.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "10.00", snap.Total.StringFixed(2))
	assert.True(t, snap.Redemptions[0].Cancelled)
}

// ── Adjustments and relocation ───────────────────────────────────────────────

func TestOrderDiscount_ManagerAndClear(t *testing.T) {
	h := newHarness(t)
	id := h.open(t)
	h.add(t, id, h.steak, 1)
	ctx := context.Background()
	pct, value := model.AdjustPercent, amount("10")

	snap, err := h.svc.ApplyOrderDiscount(ctx, h.manager, id, dto.AdjustmentRequest{Command: cmd(), Kind: &pct, Value: &value})
	require.NoError(t, err)
	require.NotNil(t, snap.OrderDiscount)
	assert.Equal(t, "10.00", snap.OrderDiscount.Amount.StringFixed(2))
	assert.Equal(t, "90.00", snap.Total.StringFixed(2))

	snap, err = h.svc.ApplyOrderDiscount(ctx, h.manager, id, dto.AdjustmentRequest{Command: cmd()})
	require.NoError(t, err)
	assert.Nil(t, snap.OrderDiscount)
	assert.Equal(t, "100.00", snap.Total.StringFixed(2))

	_, err = h.svc.ApplyOrderSurcharge(ctx, h.manager, id, dto.AdjustmentRequest{Command: cmd(), Kind: &pct})
	assert.ErrorIs(t, err, apierror.ErrValidation)
}

func TestRelocateOrder_TargetMustExist(t *testing.T) {
	h := newHarness(t)
	src, dst := h.open(t), h.open(t)
	ctx := context.Background()

	_, err := h.svc.RelocateOrder(ctx, h.cashier, src, dto.RelocateOrderRequest{Command: cmd(), Status: model.OrderMoved, TargetOrderID: uuid.NewString()})
	assert.ErrorIs(t, err, apierror.ErrOrderNotFound)

	snap, err := h.svc.RelocateOrder(ctx, h.cashier, src, dto.RelocateOrderRequest{Command: cmd(), Status: model.OrderMoved, TargetOrderID: dst.String()})
	require.NoError(t, err)
	assert.Equal(t, model.OrderMoved, snap.Status)
	require.NotNil(t, snap.RelocatedTo)
	assert.Equal(t, dst.String(), *snap.RelocatedTo)
}

func TestListOrders(t *testing.T) {
	h := newHarness(t)
	h.open(t)
	h.open(t)
	resp, err := h.svc.ListOrders(context.Background(), dto.OrderFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 50, resp.Limit)
}
