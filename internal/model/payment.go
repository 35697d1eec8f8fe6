package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment methods accepted by the ledger. Capture happens on external
// hardware before the command reaches the engine.
const (
	MethodCash = "cash"
	MethodCard = "card"
)

// PaymentRecord is never deleted: cancellation flips Cancelled and records
// who authorised it.
type PaymentRecord struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID   uuid.UUID        `gorm:"type:uuid;index;not null"`
	Method    string           `gorm:"type:varchar(10);not null"`
	Amount    decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	Tendered  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Change    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	SplitID   *uuid.UUID       `gorm:"type:uuid"`
	CreatedBy uuid.UUID        `gorm:"type:uuid;not null"`
	CreatedAt time.Time

	Cancelled    bool `gorm:"not null;default:false"`
	CancelReason *string
	CancelledBy  *uuid.UUID `gorm:"type:uuid"`
	CancelledAt  *time.Time
}

func (p PaymentRecord) clone() PaymentRecord {
	c := p
	c.Tendered = cloneDec(p.Tendered)
	c.Change = cloneDec(p.Change)
	c.SplitID = cloneUUID(p.SplitID)
	c.CancelReason = cloneStr(p.CancelReason)
	c.CancelledBy = cloneUUID(p.CancelledBy)
	c.CancelledAt = cloneTime(p.CancelledAt)
	return c
}
