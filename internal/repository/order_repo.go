package repository

import (
	"context"
	"time"

	"settlepos/internal/dto"
	"settlepos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, o *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// FindForUpdate loads the order inside tx holding a row lock, so a
	// second API instance serializes behind it.
	FindForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Order, error)
	// Save writes the order and every association in one statement batch.
	Save(ctx context.Context, tx *gorm.DB, o *model.Order) error
	NextReceiptNumber(ctx context.Context, tx *gorm.DB) (int, error)
	List(ctx context.Context, filter dto.OrderFilter) ([]model.Order, int64, error)
	ListArchivable(ctx context.Context, before time.Time, limit int) ([]model.Order, error)
	MarkArchived(ctx context.Context, ids []uuid.UUID, at time.Time) error
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type orderRepo struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepo{db: db} }

func (r *orderRepo) DB() *gorm.DB { return r.db }

func withLedger(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Splits", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Redemptions", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") })
}

func (r *orderRepo) Create(ctx context.Context, tx *gorm.DB, o *model.Order) error {
	return tx.WithContext(ctx).Create(o).Error
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := withLedger(r.db.WithContext(ctx)).First(&o, "id = ?", id).Error
	return &o, err
}

func (r *orderRepo) FindForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Order, error) {
	var locked struct{ ID uuid.UUID }
	err := tx.WithContext(ctx).Model(&model.Order{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").Where("id = ?", id).Take(&locked).Error
	if err != nil {
		return nil, err
	}
	var o model.Order
	err = withLedger(tx.WithContext(ctx)).First(&o, "id = ?", id).Error
	return &o, err
}

func (r *orderRepo) Save(ctx context.Context, tx *gorm.DB, o *model.Order) error {
	return tx.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(o).Error
}

func (r *orderRepo) NextReceiptNumber(ctx context.Context, tx *gorm.DB) (int, error) {
	// Uses a PostgreSQL sequence for atomic receipt number generation
	var num int
	err := tx.WithContext(ctx).Raw("SELECT nextval('orders_receipt_number_seq')").Scan(&num).Error
	return num, err
}

func (r *orderRepo) List(ctx context.Context, filter dto.OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("archived_at IS NULL")
	if filter.Status != "" && filter.Status != "all" {
		q = q.Where("status = ?", filter.Status)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := withLedger(q).
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&orders).Error
	return orders, total, err
}

func (r *orderRepo) ListArchivable(ctx context.Context, before time.Time, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("archived_at IS NULL AND status IN ? AND updated_at < ?",
			[]string{model.OrderCompleted, model.OrderVoid, model.OrderMerged, model.OrderMoved}, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepo) MarkArchived(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id IN ? AND archived_at IS NULL", ids).
		Update("archived_at", at).Error
}
