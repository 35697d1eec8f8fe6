package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Split kinds.
const (
	SplitItems  = "ITEMS"
	SplitAmount = "AMOUNT"
	SplitAA     = "AA"
)

// SplitAllocation is one instance/quantity pair discharged by an item split,
// with the amount charged for it at split time.
type SplitAllocation struct {
	ItemID   uuid.UUID       `json:"item_id"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// SplitRecord is a tagged union on Kind. Only the fields of its kind are set.
type SplitRecord struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID     uuid.UUID         `gorm:"type:uuid;index;not null"`
	Kind        string            `gorm:"type:varchar(10);not null"`
	Allocations []SplitAllocation `gorm:"serializer:json;type:jsonb"`
	Amount      decimal.Decimal   `gorm:"type:decimal(12,2);not null"`
	Shares      int               `gorm:"not null;default:0"`
	TotalShares int               `gorm:"not null;default:0"`
	PaymentID   uuid.UUID         `gorm:"type:uuid;not null"`
	Cancelled   bool              `gorm:"not null;default:false"`
	CreatedAt   time.Time
}

func (s SplitRecord) clone() SplitRecord {
	c := s
	c.Allocations = append([]SplitAllocation(nil), s.Allocations...)
	return c
}
