package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"settlepos/internal/dto"
	"settlepos/internal/infra"
	"settlepos/internal/model"
	"settlepos/internal/repository"
	"settlepos/internal/worker"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── Stubs ────────────────────────────────────────────────────────────────────

type stubOrders struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*model.Order
	receipt int
	saves   int
}

var _ repository.OrderRepository = (*stubOrders)(nil)

func newStubOrders() *stubOrders {
	return &stubOrders{orders: map[uuid.UUID]*model.Order{}, receipt: 1000}
}

func (r *stubOrders) Create(_ context.Context, _ *gorm.DB, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *stubOrders) FindByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return o.Clone(), nil
}

func (r *stubOrders) FindForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *stubOrders) Save(_ context.Context, _ *gorm.DB, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o.Clone()
	r.saves++
	return nil
}

func (r *stubOrders) NextReceiptNumber(context.Context, *gorm.DB) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipt++
	return r.receipt, nil
}

func (r *stubOrders) List(context.Context, dto.OrderFilter) ([]model.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, *o.Clone())
	}
	return out, int64(len(out)), nil
}

func (r *stubOrders) ListArchivable(context.Context, time.Time, int) ([]model.Order, error) {
	return nil, nil
}
func (r *stubOrders) MarkArchived(context.Context, []uuid.UUID, time.Time) error { return nil }
func (r *stubOrders) DB() *gorm.DB                                              { return nil }

func (r *stubOrders) get(id uuid.UUID) *model.Order {
	o, _ := r.FindByID(context.Background(), id)
	return o
}

type stubCommands struct {
	mu      sync.Mutex
	records []model.CommandRecord
}

var _ repository.CommandRepository = (*stubCommands)(nil)

func (r *stubCommands) Find(_ context.Context, _ *gorm.DB, orderID uuid.UUID, commandID string) (*model.CommandRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].OrderID == orderID && r.records[i].CommandID == commandID {
			rec := r.records[i]
			return &rec, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCommands) FindOpen(_ context.Context, commandID string) (*model.CommandRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].CommandID == commandID && r.records[i].Name == repository.OpenOrderCommand {
			rec := r.records[i]
			return &rec, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCommands) Create(_ context.Context, _ *gorm.DB, rec *model.CommandRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.OrderID == rec.OrderID && existing.CommandID == rec.CommandID {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	r.records = append(r.records, *rec)
	return nil
}

func (r *stubCommands) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type stubProducts struct{ byID map[uuid.UUID]*model.Product }

var _ repository.ProductRepository = (*stubProducts)(nil)

func (r *stubProducts) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *stubProducts) FindBySKU(_ context.Context, sku string) (*model.Product, error) {
	for _, p := range r.byID {
		if p.SKU == sku {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubProducts) Create(_ context.Context, p *model.Product) error {
	r.byID[p.ID] = p
	return nil
}

type stubRules struct{ rules []model.PricingRule }

var _ repository.PricingRuleRepository = (*stubRules)(nil)

func (r *stubRules) ListActive(context.Context) ([]model.PricingRule, error) { return r.rules, nil }
func (r *stubRules) Create(_ context.Context, rule *model.PricingRule) error {
	r.rules = append(r.rules, *rule)
	return nil
}

type stubStamps struct {
	mu         sync.Mutex
	activities []model.StampActivity
	progress   map[string]int
	deltas     []int
	orders     *stubOrders
}

var _ repository.StampRepository = (*stubStamps)(nil)

func progressKey(member, activity uuid.UUID) string { return member.String() + "/" + activity.String() }

func (r *stubStamps) FindActivity(_ context.Context, id uuid.UUID) (*model.StampActivity, error) {
	for i := range r.activities {
		if r.activities[i].ID == id {
			a := r.activities[i]
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubStamps) ListActivities(context.Context) ([]model.StampActivity, error) {
	return r.activities, nil
}

func (r *stubStamps) Progress(_ context.Context, _ *gorm.DB, member, activity uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress[progressKey(member, activity)], nil
}

func (r *stubStamps) Reserved(_ context.Context, _ *gorm.DB, member, activity, except uuid.UUID) (int, error) {
	if r.orders == nil {
		return 0, nil
	}
	r.orders.mu.Lock()
	defer r.orders.mu.Unlock()
	n := 0
	for id, o := range r.orders.orders {
		if id == except || o.MemberID == nil || *o.MemberID != member {
			continue
		}
		if o.Status != model.OrderOpen && o.Status != model.OrderPartiallyPaid {
			continue
		}
		for _, red := range o.Redemptions {
			if red.ActivityID == activity && !red.Cancelled {
				n++
			}
		}
	}
	return n, nil
}

func (r *stubStamps) AddProgress(_ context.Context, _ *gorm.DB, member, activity uuid.UUID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := progressKey(member, activity)
	r.progress[k] = max(r.progress[k]+delta, 0)
	r.deltas = append(r.deltas, delta)
	return nil
}

type stubMembers struct{ byCode map[string]*model.Member }

var _ repository.MemberRepository = (*stubMembers)(nil)

func (r *stubMembers) FindByID(_ context.Context, id uuid.UUID) (*model.Member, error) {
	for _, m := range r.byCode {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubMembers) FindByCode(_ context.Context, code string) (*model.Member, error) {
	m, ok := r.byCode[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m, nil
}

type stubStaff struct{ users []*model.Staff }

var _ repository.StaffRepository = (*stubStaff)(nil)

func (r *stubStaff) Create(_ context.Context, s *model.Staff) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.users = append(r.users, s)
	return nil
}

func (r *stubStaff) FindByUsername(_ context.Context, username string) (*model.Staff, error) {
	for _, u := range r.users {
		if u.Username == username && u.Active {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubStaff) FindByID(_ context.Context, id uuid.UUID) (*model.Staff, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubStaff) Update(context.Context, *model.Staff) error { return nil }

type recorder struct {
	mu        sync.Mutex
	snapshots int
	events    []string
	kicks     []infra.DrawerKick
	losses    []worker.LossNotice
}

func (r *recorder) Publish(_ context.Context, _ uuid.UUID, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots++
	return nil
}

type eventRecorder struct{ *recorder }

func (e eventRecorder) Publish(_ context.Context, key string, _ any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, key)
	return nil
}

func (r *recorder) EnqueueDrawerKick(_ context.Context, k infra.DrawerKick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kicks = append(r.kicks, k)
	return nil
}

func (r *recorder) EnqueueLossNotice(_ context.Context, n worker.LossNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.losses = append(r.losses, n)
	return nil
}
