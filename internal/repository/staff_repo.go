package repository

import (
	"context"

	"settlepos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StaffRepository interface {
	Create(ctx context.Context, s *model.Staff) error
	FindByUsername(ctx context.Context, username string) (*model.Staff, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Staff, error)
	Update(ctx context.Context, s *model.Staff) error
}

type staffRepo struct{ db *gorm.DB }

func NewStaffRepository(db *gorm.DB) StaffRepository { return &staffRepo{db: db} }

func (r *staffRepo) Create(ctx context.Context, s *model.Staff) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *staffRepo) FindByUsername(ctx context.Context, username string) (*model.Staff, error) {
	var s model.Staff
	// Accept login by username OR email (case-insensitive email match)
	err := r.db.WithContext(ctx).
		Where("(username = ? OR LOWER(email) = LOWER(?)) AND active = true", username, username).
		First(&s).Error
	return &s, err
}

func (r *staffRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	var s model.Staff
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *staffRepo) Update(ctx context.Context, s *model.Staff) error {
	return r.db.WithContext(ctx).Save(s).Error
}
