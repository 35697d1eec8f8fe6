package repository

import (
	"context"
	"time"

	"settlepos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StampRepository interface {
	FindActivity(ctx context.Context, id uuid.UUID) (*model.StampActivity, error)
	ListActivities(ctx context.Context) ([]model.StampActivity, error)
	// Progress returns the member's current stamps, zero when none recorded.
	// Inside tx the progress row is locked until commit.
	Progress(ctx context.Context, tx *gorm.DB, memberID, activityID uuid.UUID) (int, error)
	// Reserved counts active redemptions of the activity on the member's
	// other open orders, whose stamps are debited when those orders complete.
	Reserved(ctx context.Context, tx *gorm.DB, memberID, activityID, exceptOrderID uuid.UUID) (int, error)
	// AddProgress adjusts the member's stamps by delta inside tx, never
	// below zero.
	AddProgress(ctx context.Context, tx *gorm.DB, memberID, activityID uuid.UUID, delta int) error
}

type stampRepo struct{ db *gorm.DB }

func NewStampRepository(db *gorm.DB) StampRepository { return &stampRepo{db: db} }

func (r *stampRepo) FindActivity(ctx context.Context, id uuid.UUID) (*model.StampActivity, error) {
	var a model.StampActivity
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	return &a, err
}

func (r *stampRepo) ListActivities(ctx context.Context) ([]model.StampActivity, error) {
	var list []model.StampActivity
	err := r.db.WithContext(ctx).Where("active = true").Order("name ASC").Find(&list).Error
	return list, err
}

func (r *stampRepo) Progress(ctx context.Context, tx *gorm.DB, memberID, activityID uuid.UUID) (int, error) {
	q := r.db.WithContext(ctx)
	if tx != nil {
		q = tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p model.StampProgress
	err := q.
		Where("member_id = ? AND activity_id = ?", memberID, activityID).
		Limit(1).Find(&p).Error
	return p.CurrentStamps, err
}

func (r *stampRepo) Reserved(ctx context.Context, tx *gorm.DB, memberID, activityID, exceptOrderID uuid.UUID) (int, error) {
	if tx == nil {
		tx = r.db
	}
	var n int64
	err := tx.WithContext(ctx).Model(&model.StampRedemption{}).
		Joins("JOIN orders ON orders.id = stamp_redemptions.order_id").
		Where("stamp_redemptions.activity_id = ? AND stamp_redemptions.cancelled = false", activityID).
		Where("orders.member_id = ? AND orders.id <> ?", memberID, exceptOrderID).
		Where("orders.status IN ?", []string{model.OrderOpen, model.OrderPartiallyPaid}).
		Count(&n).Error
	return int(n), err
}

func (r *stampRepo) AddProgress(ctx context.Context, tx *gorm.DB, memberID, activityID uuid.UUID, delta int) error {
	p := model.StampProgress{
		MemberID:      memberID,
		ActivityID:    activityID,
		CurrentStamps: max(delta, 0),
		UpdatedAt:     time.Now(),
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "member_id"}, {Name: "activity_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"current_stamps": gorm.Expr("GREATEST(stamp_progress.current_stamps + ?, 0)", delta),
			"updated_at":     p.UpdatedAt,
		}),
	}).Create(&p).Error
}
