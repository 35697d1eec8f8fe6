package repository

import (
	"context"

	"settlepos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MemberRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Member, error)
	FindByCode(ctx context.Context, code string) (*model.Member, error)
}

type memberRepo struct{ db *gorm.DB }

func NewMemberRepository(db *gorm.DB) MemberRepository { return &memberRepo{db: db} }

func (r *memberRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	var m model.Member
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	return &m, err
}

func (r *memberRepo) FindByCode(ctx context.Context, code string) (*model.Member, error) {
	var m model.Member
	// Accept the card code or the phone number
	err := r.db.WithContext(ctx).
		Where("(code = ? OR phone = ?) AND active = true", code, code).
		First(&m).Error
	return &m, err
}
