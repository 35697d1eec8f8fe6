package ledger_test

import (
	"testing"
	"time"

	"settlepos/internal/ledger"
	"settlepos/internal/model"
	"settlepos/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// ── Fixtures ──────────────────────────────────────────────────────────────────

var (
	cashier    = uuid.MustParse("00000000-0000-0000-0000-00000000c001")
	supervisor = uuid.MustParse("00000000-0000-0000-0000-00000000c002")
	// Wednesday 12:30 local.
	noon = time.Date(2026, 3, 4, 12, 30, 0, 0, time.UTC)
)

func meta() ledger.Meta {
	return ledger.Meta{Actor: cashier, Authorizer: cashier, Now: noon}
}

func supervised() ledger.Meta {
	return ledger.Meta{Actor: cashier, Authorizer: supervisor, Now: noon}
}

func product(name, price string) *model.Product {
	return &model.Product{
		ID:     uuid.New(),
		SKU:    name,
		Name:   name,
		Price:  money.MustParse(price),
		Active: true,
	}
}

func newOrder() *model.Order {
	return ledger.NewOrder(1, meta())
}

func addItem(t *testing.T, o *model.Order, p *model.Product, qty int) *model.OrderItem {
	t.Helper()
	it, err := ledger.AddItem(o, p, qty, nil, nil, meta())
	require.NoError(t, err)
	return it
}

func cash() ledger.Tender { return ledger.Tender{Method: model.MethodCash} }
func card() ledger.Tender { return ledger.Tender{Method: model.MethodCard} }

func dec(s string) decimal.Decimal { return money.MustParse(s) }

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Equal(t, want, got.StringFixed(2))
}

func requireBalanced(t *testing.T, o *model.Order) {
	t.Helper()
	require.NoError(t, ledger.CheckInvariants(o))
}
