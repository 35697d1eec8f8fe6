package repository

import (
	"context"

	"settlepos/internal/model"

	"gorm.io/gorm"
)

type PricingRuleRepository interface {
	// ListActive returns every active rule; window and scope matching happen
	// in the ledger at item-add time.
	ListActive(ctx context.Context) ([]model.PricingRule, error)
	Create(ctx context.Context, r *model.PricingRule) error
}

type pricingRuleRepo struct{ db *gorm.DB }

func NewPricingRuleRepository(db *gorm.DB) PricingRuleRepository { return &pricingRuleRepo{db: db} }

func (r *pricingRuleRepo) ListActive(ctx context.Context) ([]model.PricingRule, error) {
	var rules []model.PricingRule
	err := r.db.WithContext(ctx).Where("active = true").Order("priority DESC, id ASC").Find(&rules).Error
	return rules, err
}

func (r *pricingRuleRepo) Create(ctx context.Context, rule *model.PricingRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}
