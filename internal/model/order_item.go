package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemOption is a selected product option with its price modifier.
type ItemOption struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// OrderItem is one item instance on an order. ID is the per-instance id and
// stays stable across edits. Removed items are kept for audit.
type OrderItem struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID    uuid.UUID  `gorm:"type:uuid;index;not null"`
	Position   int        `gorm:"not null"`
	ProductID  uuid.UUID  `gorm:"type:uuid;not null"`
	CategoryID *uuid.UUID `gorm:"type:uuid"`
	Tags       []string   `gorm:"serializer:json;type:jsonb"`
	Name       string     `gorm:"not null"`
	Quantity   int        `gorm:"not null"`
	// UnitPrice is the catalog price at the time the item was added.
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Options   []ItemOption    `gorm:"serializer:json;type:jsonb"`
	TaxRate   decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0"`

	RuleDiscount   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	RuleSurcharge  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	AppliedRuleIDs []string        `gorm:"serializer:json;type:jsonb"`

	ManualDiscountPct decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	ManualDiscountBy  *uuid.UUID      `gorm:"type:uuid"`

	CompQuantity   int        `gorm:"not null;default:0"`
	CompReason     *string
	CompAuthorizer *uuid.UUID `gorm:"type:uuid"`
	RewardItem     bool       `gorm:"not null;default:false"`

	Removed   bool `gorm:"not null;default:false"`
	RemovedAt *time.Time
	CreatedAt time.Time
}

// OriginalUnitPrice is the unit price including option modifiers, before any
// adjustment.
func (it *OrderItem) OriginalUnitPrice() decimal.Decimal {
	p := it.UnitPrice
	for _, o := range it.Options {
		p = p.Add(o.PriceDelta)
	}
	return p.Round(2)
}

func (it OrderItem) clone() OrderItem {
	c := it
	c.CategoryID = cloneUUID(it.CategoryID)
	c.ManualDiscountBy = cloneUUID(it.ManualDiscountBy)
	c.CompReason = cloneStr(it.CompReason)
	c.CompAuthorizer = cloneUUID(it.CompAuthorizer)
	c.RemovedAt = cloneTime(it.RemovedAt)
	c.Tags = append([]string(nil), it.Tags...)
	c.Options = append([]ItemOption(nil), it.Options...)
	c.AppliedRuleIDs = append([]string(nil), it.AppliedRuleIDs...)
	return c
}
