package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"settlepos/internal/apierror"
	"settlepos/internal/dto"
	"settlepos/internal/infra"
	"settlepos/internal/ledger"
	"settlepos/internal/metrics"
	"settlepos/internal/model"
	"settlepos/internal/repository"
	"settlepos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// OrderService is the command surface of the settlement engine. Every
// mutating call is idempotent on its command id and returns the full order
// snapshot.
type OrderService interface {
	OpenOrder(ctx context.Context, actor Actor, req dto.OpenOrderRequest) (*dto.OrderSnapshot, error)
	AddItem(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.AddItemRequest) (*dto.OrderSnapshot, error)
	RemoveItem(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.RemoveItemRequest) (*dto.OrderSnapshot, error)
	ApplyItemDiscount(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.ItemDiscountRequest) (*dto.OrderSnapshot, error)
	ApplyOrderDiscount(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.AdjustmentRequest) (*dto.OrderSnapshot, error)
	ApplyOrderSurcharge(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.AdjustmentRequest) (*dto.OrderSnapshot, error)
	CompItem(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.CompItemRequest) (*dto.OrderSnapshot, error)
	UncompItem(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.UncompItemRequest) (*dto.OrderSnapshot, error)
	SplitByItems(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.SplitByItemsRequest) (*dto.OrderSnapshot, error)
	SplitByAmount(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.SplitByAmountRequest) (*dto.OrderSnapshot, error)
	StartAASplit(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.StartAASplitRequest) (*dto.OrderSnapshot, error)
	PayAASplit(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.PayAASplitRequest) (*dto.OrderSnapshot, error)
	AddPayment(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.AddPaymentRequest) (*dto.OrderSnapshot, error)
	CompleteOrder(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.CompleteOrderRequest) (*dto.OrderSnapshot, error)
	VoidOrder(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.VoidOrderRequest) (*dto.OrderSnapshot, error)
	CancelPayment(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.CancelPaymentRequest) (*dto.OrderSnapshot, error)
	RedeemStamp(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.RedeemStampRequest) (*dto.OrderSnapshot, error)
	CancelStampRedemption(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.CancelStampRequest) (*dto.OrderSnapshot, error)
	LinkMember(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.LinkMemberRequest) (*dto.OrderSnapshot, error)
	UnlinkMember(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.UnlinkMemberRequest) (*dto.OrderSnapshot, error)
	RelocateOrder(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.RelocateOrderRequest) (*dto.OrderSnapshot, error)

	GetOrder(ctx context.Context, orderID uuid.UUID) (*dto.OrderSnapshot, error)
	ListOrders(ctx context.Context, filter dto.OrderFilter) (*dto.OrderListResponse, error)
	MatchStamp(ctx context.Context, orderID uuid.UUID, q dto.StampMatchQuery) (*dto.StampMatchResponse, error)
}

// SnapshotPublisher fans committed snapshots out to watching terminals.
type SnapshotPublisher interface {
	Publish(ctx context.Context, orderID uuid.UUID, snapshot []byte) error
}

// EventPublisher emits order lifecycle events to downstream systems.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// JobDispatcher schedules best-effort side effects.
type JobDispatcher interface {
	EnqueueDrawerKick(ctx context.Context, kick infra.DrawerKick) error
	EnqueueLossNotice(ctx context.Context, notice worker.LossNotice) error
}

// OrderDeps wires an OrderService. Snapshots, Events and Jobs may be nil.
type OrderDeps struct {
	Orders     repository.OrderRepository
	Commands   repository.CommandRepository
	Products   repository.ProductRepository
	Rules      repository.PricingRuleRepository
	Stamps     repository.StampRepository
	Members    repository.MemberRepository
	Staff      repository.StaffRepository
	Authorizer Authorizer
	Serializer *Serializer
	Snapshots  SnapshotPublisher
	Events     EventPublisher
	Jobs       JobDispatcher
	// Location is the store's timezone; pricing rule windows are local.
	Location *time.Location
	Now      func() time.Time
}

type orderService struct {
	OrderDeps
}

func NewOrderService(deps OrderDeps) OrderService {
	if deps.Serializer == nil {
		deps.Serializer = NewSerializer()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Authorizer == nil {
		deps.Authorizer = NewAuthorizer(deps.Staff)
	}
	return &orderService{OrderDeps: deps}
}

// mutation changes the cloned order in place. tx is nil in unit-test mode.
type mutation func(ctx context.Context, tx *gorm.DB, o *model.Order, meta ledger.Meta) error

// ── Pipeline ──────────────────────────────────────────────────────────────────
// Every command on an existing order goes through execute:
//   1. Replay check on (order, command id); a reused id for another command is E0004
//   2. Authorization: own grant or verified supervisor override
//   3. Per-order FIFO lane, then a transaction holding the order row lock
//   4. Replay re-check under the lock, clone, mutate, invariant check
//   5. Persist order + command record atomically
//   6. After commit: publish snapshot, enqueue side effects

func (s *orderService) execute(ctx context.Context, actor Actor, orderID uuid.UUID, name string, cmd dto.Command, fn mutation) (snap *dto.OrderSnapshot, err error) {
	start := time.Now()
	replayed := false
	defer func() { metrics.ObserveCommand(name, replayed, err, time.Since(start)) }()

	if cmd.CommandID == "" {
		return nil, apierror.ErrInvalidRequest.With("command_id is required")
	}
	if snap, err = s.replay(ctx, nil, orderID, cmd.CommandID, name); snap != nil || err != nil {
		replayed = snap != nil
		return snap, err
	}

	authorizer, err := s.Authorizer.Authorize(ctx, actor, name, cmd.Override)
	if err != nil {
		return nil, err
	}

	// The lane job may outlive a cancelled caller, so it only writes these
	// locals; they are read once Do reports the job finished.
	var (
		before, after *model.Order
		result        *dto.OrderSnapshot
		lockedReplay  bool
	)
	err = s.Serializer.Do(ctx, orderID, func(ctx context.Context) error {
		return runTx(ctx, s.Orders.DB(), func(tx *gorm.DB) error {
			current, err := s.Orders.FindForUpdate(ctx, tx, orderID)
			if err != nil {
				return classify(err, apierror.ErrOrderNotFound)
			}
			prior, err := s.replay(ctx, tx, orderID, cmd.CommandID, name)
			if prior != nil || err != nil {
				result, lockedReplay = prior, prior != nil
				return err
			}

			meta := ledger.Meta{Actor: actor.ID, Authorizer: authorizer, Now: s.Now().In(s.Location)}
			next := current.Clone()
			if err := fn(ctx, tx, next, meta); err != nil {
				return err
			}
			if err := ledger.CheckInvariants(next); err != nil {
				log.Error().Err(err).Str("order_id", orderID.String()).Str("command", name).Msg("ledger invariant violated, command rejected")
				return err
			}
			if err := s.settleStamps(ctx, tx, current, next); err != nil {
				return err
			}
			if err := s.Orders.Save(ctx, tx, next); err != nil {
				return apierror.ErrDatabase.Wrap(err)
			}
			out, raw, err := encodeSnapshot(next)
			if err != nil {
				return err
			}
			rec := &model.CommandRecord{
				OrderID:   orderID,
				CommandID: cmd.CommandID,
				Name:      name,
				ActorID:   actor.ID,
				Snapshot:  raw,
				CreatedAt: meta.Now,
			}
			if err := s.Commands.Create(ctx, tx, rec); err != nil {
				return apierror.ErrDatabase.Wrap(err)
			}
			before, after, result = current, next, out
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

	log.Info().
		Str("order_id", orderID.String()).
		Str("command_id", cmd.CommandID).
		Str("command", name).
		Str("status", after.Status).
		Int("version", after.Version).
		Msg("command applied")
	s.afterCommit(ctx, actor, authorizer, before, after, snap)
	return snap, nil
}

// replay returns the stored snapshot when commandID was already applied to
// orderID under the same name.
func (s *orderService) replay(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, commandID, name string) (*dto.OrderSnapshot, error) {
	rec, err := s.Commands.Find(ctx, tx, orderID, commandID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.ErrDatabase.Wrap(err)
	}
	if rec.Name != name {
		return nil, apierror.ErrCommandReused.With("command %s was %s, not %s", commandID, rec.Name, name)
	}
	var snap dto.OrderSnapshot
	if err := json.Unmarshal(rec.Snapshot, &snap); err != nil {
		return nil, apierror.ErrInternal.Wrap(err)
	}
	return &snap, nil
}

func encodeSnapshot(o *model.Order) (*dto.OrderSnapshot, []byte, error) {
	snap := toOrderSnapshot(o)
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, nil, apierror.ErrInternal.Wrap(err)
	}
	return &snap, raw, nil
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// classify maps a repository error to notFound or a database failure.
func classify(err error, notFound *apierror.Error) error {
	var apiErr *apierror.Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	default:
		return apierror.ErrDatabase.Wrap(err)
	}
}

// asTxError keeps classified errors and reports anything else (commit
// failures, serialization failures) as a transaction error.
func asTxError(err error) error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return apierror.ErrTransaction.Wrap(err)
}

// ── Side effects ──────────────────────────────────────────────────────────────

// settleStamps moves the member's stamp balance when the order enters or
// leaves COMPLETED: earned stamps are credited and redeemed rewards debited.
func (s *orderService) settleStamps(ctx context.Context, tx *gorm.DB, before, after *model.Order) error {
	wasDone := before.Status == model.OrderCompleted
	isDone := after.Status == model.OrderCompleted
	if wasDone == isDone || s.Stamps == nil {
		return nil
	}
	o, sign := after, 1
	if wasDone {
		o, sign = before, -1
	}
	if o.MemberID == nil {
		return nil
	}
	activities, err := s.Stamps.ListActivities(ctx)
	if err != nil {
		return apierror.ErrDatabase.Wrap(err)
	}
	for i := range activities {
		a := &activities[i]
		delta := ledger.StampsEarned(o, a)
		for _, r := range o.Redemptions {
			if r.ActivityID == a.ID && !r.Cancelled {
				delta -= a.RequiredStamps
			}
		}
		if delta == 0 {
			continue
		}
		if err := s.Stamps.AddProgress(ctx, tx, *o.MemberID, a.ID, sign*delta); err != nil {
			return apierror.ErrDatabase.Wrap(err)
		}
	}
	return nil
}

// afterCommit publishes the snapshot and schedules best-effort work. Nothing
// here can fail the command.
func (s *orderService) afterCommit(ctx context.Context, actor Actor, authorizer uuid.UUID, before, after *model.Order, snap *dto.OrderSnapshot) {
	ctx = context.WithoutCancel(ctx)
	logger := log.With().Str("order_id", after.ID.String()).Logger()

	if s.Snapshots != nil {
		if raw, err := json.Marshal(snap); err == nil {
			if err := s.Snapshots.Publish(ctx, after.ID, raw); err != nil {
				logger.Warn().Err(err).Msg("snapshot broadcast failed")
			}
		}
	}

	if s.Jobs != nil {
		for _, p := range after.Payments {
			if p.Method != model.MethodCash || p.Cancelled || before.PaymentByID(p.ID) != nil {
				continue
			}
			kick := infra.DrawerKick{OrderID: after.ID.String(), PaymentID: p.ID.String(), Amount: p.Amount.StringFixed(2)}
			if p.Change != nil {
				kick.Change = p.Change.StringFixed(2)
			}
			if err := s.Jobs.EnqueueDrawerKick(ctx, kick); err != nil {
				logger.Warn().Err(err).Msg("drawer kick not enqueued")
			}
		}
	}

	if before.Status == after.Status {
		return
	}
	switch after.Status {
	case model.OrderCompleted:
		s.publishEvent(ctx, infra.EventOrderCompleted, snap)
	case model.OrderVoid:
		s.publishEvent(ctx, infra.EventOrderVoided, snap)
		if s.Jobs != nil && after.VoidKind != nil && *after.VoidKind == model.VoidLossSettled {
			if err := s.Jobs.EnqueueLossNotice(ctx, s.lossNotice(ctx, actor, authorizer, after)); err != nil {
				logger.Warn().Err(err).Msg("loss notice not enqueued")
			}
		}
	}
}

func (s *orderService) publishEvent(ctx context.Context, key string, snap *dto.OrderSnapshot) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, key, snap); err != nil {
		log.Warn().Err(err).Str("order_id", snap.ID).Str("event", key).Msg("event not published")
	}
}

func (s *orderService) lossNotice(ctx context.Context, actor Actor, authorizer uuid.UUID, o *model.Order) worker.LossNotice {
	n := worker.LossNotice{
		OrderID:   o.ID.String(),
		Receipt:   o.ReceiptNumber,
		Total:     o.Total.StringFixed(2),
		Paid:      o.PaidAmount.StringFixed(2),
		Loss:      o.LossAmount.StringFixed(2),
		SettledAt: formatTime(o.UpdatedAt),
	}
	if o.VoidReason != nil {
		n.Reason = *o.VoidReason
	}
	n.SettledBy = actor.Username
	n.AuthorizedBy = actor.Username
	if authorizer != actor.ID {
		n.AuthorizedBy = s.staffName(ctx, authorizer)
	}
	return n
}

func (s *orderService) staffName(ctx context.Context, id uuid.UUID) string {
	if s.Staff == nil {
		return id.String()
	}
	st, err := s.Staff.FindByID(ctx, id)
	if err != nil {
		return id.String()
	}
	return st.Username
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*dto.OrderSnapshot, error) {
	o, err := s.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, classify(err, apierror.ErrOrderNotFound)
	}
	snap := toOrderSnapshot(o)
	return &snap, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter dto.OrderFilter) (*dto.OrderListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	orders, total, err := s.Orders.List(ctx, filter)
	if err != nil {
		return nil, apierror.ErrDatabase.Wrap(err)
	}
	resp := &dto.OrderListResponse{Data: make([]dto.OrderSnapshot, 0, len(orders)), Total: total, Page: filter.Page, Limit: filter.Limit}
	for i := range orders {
		resp.Data = append(resp.Data, toOrderSnapshot(&orders[i]))
	}
	return resp, nil
}

// MatchStamp previews how redeemStamp would apply an activity's reward,
// without changing anything.
func (s *orderService) MatchStamp(ctx context.Context, orderID uuid.UUID, q dto.StampMatchQuery) (*dto.StampMatchResponse, error) {
	activityID, err := parseID(q.ActivityID, "activity_id")
	if err != nil {
		return nil, err
	}
	o, err := s.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, classify(err, apierror.ErrOrderNotFound)
	}
	a, err := s.Stamps.FindActivity(ctx, activityID)
	if err != nil {
		return nil, classify(err, apierror.ErrActivityNotFound)
	}
	progress, err := s.availableStamps(ctx, nil, o, a)
	if err != nil {
		return nil, err
	}
	m, err := ledger.MatchReward(o, a, progress)
	if err != nil {
		return nil, err
	}
	resp := &dto.StampMatchResponse{
		ActivityID:     a.ID.String(),
		Kind:           string(m.Kind),
		CurrentStamps:  progress,
		BonusStamps:    m.Bonus,
		RequiredStamps: a.RequiredStamps,
	}
	if m.Item != nil {
		resp.ItemID = uuidStr(&m.Item.ID)
	}
	for _, c := range m.Candidates {
		resp.Candidates = append(resp.Candidates, toItemSnapshot(o, c))
	}
	return resp, nil
}

// availableStamps is the member's stamp balance less the stamps already
// promised to redemptions on the member's other open orders.
func (s *orderService) availableStamps(ctx context.Context, tx *gorm.DB, o *model.Order, a *model.StampActivity) (int, error) {
	if o.MemberID == nil {
		return 0, nil
	}
	n, err := s.Stamps.Progress(ctx, tx, *o.MemberID, a.ID)
	if err != nil {
		return 0, apierror.ErrDatabase.Wrap(err)
	}
	held, err := s.Stamps.Reserved(ctx, tx, *o.MemberID, a.ID, o.ID)
	if err != nil {
		return 0, apierror.ErrDatabase.Wrap(err)
	}
	return n - held*a.RequiredStamps, nil
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apierror.ErrValidation.WithFields(map[string]string{field: "uuid"})
	}
	return id, nil
}
