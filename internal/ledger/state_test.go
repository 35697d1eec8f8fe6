package ledger_test

import (
	"testing"

	"settlepos/internal/apierror"
	"settlepos/internal/ledger"
	"settlepos/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPayment_PartialThenComplete(t *testing.T) {
	o := newOrder()
	addItem(t, o, product("burger", "12.50"), 2)
	requireAmount(t, "25.00", o.Total)

	_, err := ledger.AddPayment(o, dec("10.00"), card(), meta())
	require.NoError(t, err)
	assert.Equal(t, model.OrderPartiallyPaid, o.Status)
	requireAmount(t, "15.00", o.RemainingAmount)
	requireBalanced(t, o)

	_, err = ledger.AddPayment(o, dec("15.00"), card(), meta())
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, o.Status)
	assert.NotNil(t, o.CompletedAt)
	requireBalanced(t, o)
}

func TestAddPayment_RejectsOverpay(t *testing.T) {
	o := newOrder()
	addItem(t, o, product("soda", "3.00"), 1)

	_, err := ledger.AddPayment(o, dec("3.01"), card(), meta())
	assert.ErrorIs(t, err, apierror.ErrAmountExceedsRemaining)

	_, err = ledger.AddPayment(o, dec("1.005"), card(), meta())
	assert.ErrorIs(t, err, apierror.ErrInvalidAmount)
	assert.Empty(t, o.Payments)
}

func TestCashTender_Change(t *testing.T) {
	o := newOrder()
	addItem(t, o, product("pizza", "17.40"), 1)

	tendered := dec("20.00")
	p, err := ledger.AddPayment(o, dec("17.40"), ledger.Tender{Method: model.MethodCash, Tendered: &tendered}, meta())
	require.NoError(t, err)
	require.NotNil(t, p.Change)
	requireAmount(t, "2.60", *p.Change)

	o2 := newOrder()
	addItem(t, o2, product("pizza", "17.40"), 1)
	short := dec("10.00")
	_, err = ledger.AddPayment(o2, dec("17.40"), ledger.Tender{Method: model.MethodCash, Tendered: &short}, meta())
	assert.ErrorIs(t, err, apierror.ErrTenderInsufficient)

	_, err = ledger.AddPayment(o2, dec("1.00"), ledger.Tender{Method: "voucher"}, meta())
	assert.ErrorIs(t, err, apierror.ErrInvalidMethod)
}

func TestCompleteOrder_PaysRemainderWithTender(t *testing.T) {
	o := newOrder()
	addItem(t, o, product("salad", "9.90"), 1)

	_, err := ledger.CompleteOrder(o, nil, meta())
	assert.ErrorIs(t, err, apierror.ErrBalanceOutstanding)

	tender := card()
	p, err := ledger.CompleteOrder(o, &tender, meta())
	require.NoError(t, err)
	requireAmount(t, "9.90", p.Amount)
	assert.Equal(t, model.OrderCompleted, o.Status)
}

func TestCompleteOrder_FullyCompedOrder(t *testing.T) {
	o := newOrder()
	it := addItem(t, o, product("water", "2.00"), 1)
	require.NoError(t, ledger.CompItem(o, it.ID, 1, "spill", supervised()))
	requireAmount(t, "0.00", o.Total)

	p, err := ledger.CompleteOrder(o, nil, meta())
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, model.OrderCompleted, o.Status)
}

func TestCancelPayment_CompletedOrderReopens(t *testing.T) {
	o := newOrder()
	addItem(t, o, product("steak", "30.00"), 1)
	p, err := ledger.AddPayment(o, dec("30.00"), card(), meta())
	require.NoError(t, err)
	require.Equal(t, model.OrderCompleted, o.Status)

	err = ledger.CancelPayment(o, p.ID, "", supervised())
	assert.ErrorIs(t, err, apierror.ErrReasonRequired)

	require.NoError(t, ledger.CancelPayment(o, p.ID, "wrong card", supervised()))
	assert.Equal(t, model.OrderOpen, o.Status)
	assert.Nil(t, o.CompletedAt)
	requireAmount(t, "0.00", o.PaidAmount)
	requireAmount(t, "30.00", o.RemainingAmount)
	assert.True(t, o.Payments[0].Cancelled)
	assert.Equal(t, supervisor, *o.Payments[0].CancelledBy)
	requireBalanced(t, o)

	err = ledger.CancelPayment(o, p.ID, "again", supervised())
	assert.ErrorIs(t, err, apierror.ErrPaymentCancelled)
	err = ledger.CancelPayment(o, uuid.New(), "missing", supervised())
	assert.ErrorIs(t, err, apierror.ErrPaymentNotFound)
}

func TestCancelPayment_LeavesPartiallyPaid(t *testing.T) {
	o := newOrder()
	addItem(t, o, product("wine", "40.00"), 1)
	first, err := ledger.AddPayment(o, dec("15.00"), card(), meta())
	require.NoError(t, err)
	_, err = ledger.AddPayment(o, dec("25.00"), card(), meta())
	require.NoError(t, err)

	require.NoError(t, ledger.CancelPayment(o, first.ID, "duplicate", supervised()))
	assert.Equal(t, model.OrderPartiallyPaid, o.Status)
	requireAmount(t, "15.00", o.RemainingAmount)
}

func TestVoid_LossSettled(t *testing.T) {
	o := newOrder()
	addItem(t, o, product("banquet", "100.00"), 1)

	err := ledger.VoidOrder(o, model.VoidLossSettled, "walked out", supervised())
	assert.ErrorIs(t, err, apierror.ErrOrderInvalidState)

	_, err = ledger.AddPayment(o, dec("40.00"), cash(), meta())
	require.NoError(t, err)
	require.NoError(t, ledger.VoidOrder(o, model.VoidLossSettled, "walked out", supervised()))

	assert.Equal(t, model.OrderVoid, o.Status)
	assert.Equal(t, model.VoidLossSettled, *o.VoidKind)
	requireAmount(t, "60.00", o.LossAmount)
	requireBalanced(t, o)

	_, err = ledger.AddPayment(o, dec("1.00"), cash(), meta())
	assert.ErrorIs(t, err, apierror.ErrOrderInvalidState)
}

func TestVoid_CancelledNeedsReason(t *testing.T) {
	o := newOrder()
	addItem(t, o, product("tea", "2.50"), 1)

	assert.ErrorIs(t, ledger.VoidOrder(o, model.VoidCancelled, "", supervised()), apierror.ErrReasonRequired)
	require.NoError(t, ledger.VoidOrder(o, model.VoidCancelled, "customer left", supervised()))
	assert.Equal(t, model.OrderVoid, o.Status)
	assert.True(t, o.LossAmount.IsZero())

	assert.ErrorIs(t, ledger.VoidOrder(o, model.VoidCancelled, "twice", supervised()), apierror.ErrOrderInvalidState)
}

func TestRelocate(t *testing.T) {
	o := newOrder()
	addItem(t, o, product("fries", "4.00"), 1)
	target := uuid.New()

	require.NoError(t, ledger.RelocateOrder(o, model.OrderMerged, target, meta()))
	assert.Equal(t, model.OrderMerged, o.Status)
	assert.Equal(t, target, *o.RelocatedTo)

	paid := newOrder()
	addItem(t, paid, product("fries", "4.00"), 2)
	_, err := ledger.AddPayment(paid, dec("4.00"), card(), meta())
	require.NoError(t, err)
	assert.ErrorIs(t, ledger.RelocateOrder(paid, model.OrderMoved, target, meta()), apierror.ErrOrderInvalidState)
}

func TestRemoveItem(t *testing.T) {
	o := newOrder()
	a := addItem(t, o, product("a", "5.00"), 1)
	addItem(t, o, product("b", "7.00"), 1)

	require.NoError(t, ledger.RemoveItem(o, a.ID, meta()))
	requireAmount(t, "7.00", o.Total)
	assert.Len(t, o.Items, 2)
	assert.ErrorIs(t, ledger.RemoveItem(o, a.ID, meta()), apierror.ErrItemRemoved)
	assert.ErrorIs(t, ledger.RemoveItem(o, uuid.New(), meta()), apierror.ErrItemNotFound)
}

func TestAddItem_OptionsAndQuantity(t *testing.T) {
	o := newOrder()
	p := product("latte", "3.50")
	p.Options = []model.ProductOption{{ID: "oat", Name: "Oat milk", PriceDelta: dec("0.60")}}

	it, err := ledger.AddItem(o, p, 2, []string{"oat"}, nil, meta())
	require.NoError(t, err)
	requireAmount(t, "4.10", it.OriginalUnitPrice())
	requireAmount(t, "8.20", o.Total)

	_, err = ledger.AddItem(o, p, 2, []string{"soy"}, nil, meta())
	assert.ErrorIs(t, err, apierror.ErrOptionNotFound)
	_, err = ledger.AddItem(o, p, 0, nil, nil, meta())
	assert.ErrorIs(t, err, apierror.ErrQuantityOutOfRange)

	p.Active = false
	_, err = ledger.AddItem(o, p, 1, nil, nil, meta())
	assert.ErrorIs(t, err, apierror.ErrProductInactive)
}
