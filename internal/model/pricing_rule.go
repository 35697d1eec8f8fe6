package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rule kinds and scopes.
const (
	RuleDiscount  = "DISCOUNT"
	RuleSurcharge = "SURCHARGE"

	ScopeGlobal   = "GLOBAL"
	ScopeCategory = "CATEGORY"
	ScopeTag      = "TAG"
	ScopeProduct  = "PRODUCT"
)

// PricingRule is an automatic discount or surcharge. Rules are maintained by
// back-office configuration; the engine only reads them.
type PricingRule struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string          `gorm:"not null"`
	Kind      string          `gorm:"type:varchar(10);not null"`
	Scope     string          `gorm:"type:varchar(10);not null"`
	ScopeRefs []string        `gorm:"serializer:json;type:jsonb"`
	ValueType string          `gorm:"type:varchar(10);not null"`
	Value     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Priority  int             `gorm:"not null;default:0"`
	Stackable bool            `gorm:"not null;default:true"`
	Active    bool            `gorm:"not null;default:true"`

	ValidFrom  *time.Time
	ValidUntil *time.Time
	// DaysOfWeek uses time.Weekday numbering; empty means every day.
	DaysOfWeek []int `gorm:"serializer:json;type:jsonb"`
	// StartMinute/EndMinute bound the daily window in minutes since midnight.
	// EndMinute < StartMinute wraps past midnight.
	StartMinute *int
	EndMinute   *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PricingRule) TableName() string { return "pricing_rules" }
