package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus values. COMPLETED, VOID, MERGED and MOVED are terminal.
const (
	OrderOpen          = "OPEN"
	OrderPartiallyPaid = "PARTIALLY_PAID"
	OrderCompleted     = "COMPLETED"
	OrderVoid          = "VOID"
	OrderMerged        = "MERGED"
	OrderMoved         = "MOVED"
)

// Void sub-reasons.
const (
	VoidCancelled   = "CANCELLED"
	VoidLossSettled = "LOSS_SETTLED"
)

// Split modes lock the family of split strategies an order accepts.
const (
	SplitModeNone   = "NONE"
	SplitModeItems  = "ITEMS"
	SplitModeAmount = "AMOUNT"
	SplitModeAA     = "AA"
)

// Adjustment value types shared by order-level adjustments and pricing rules.
const (
	AdjustPercent = "PERCENT"
	AdjustFixed   = "FIXED"
)

// Order is the authoritative ledger record of one order.
// Invariants: PaidAmount + RemainingAmount == Total, RemainingAmount >= 0,
// AATotalShares never changes once set.
type Order struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ReceiptNumber int       `gorm:"uniqueIndex;not null"`
	Status        string    `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	VoidKind      *string   `gorm:"type:varchar(20)"`
	VoidReason    *string
	LossAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	Subtotal                decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	RuleDiscountTotal       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	RuleSurchargeTotal      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	ManualItemDiscountTotal decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CompTotal               decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	ItemsTotal              decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	// Order-level manual adjustments. Kind nil means not applied.
	OrderDiscountKind    *string          `gorm:"type:varchar(10)"`
	OrderDiscountValue   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	OrderDiscountAmount  decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	OrderDiscountBy      *uuid.UUID       `gorm:"type:uuid"`
	OrderSurchargeKind   *string          `gorm:"type:varchar(10)"`
	OrderSurchargeValue  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	OrderSurchargeAmount decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	OrderSurchargeBy     *uuid.UUID       `gorm:"type:uuid"`

	TaxTotal        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// PaidQuantities maps item instance id → quantity discharged by item splits.
	PaidQuantities map[string]int `gorm:"serializer:json;type:jsonb;not null;default:'{}'"`

	MemberID   *uuid.UUID `gorm:"type:uuid;index"`
	MemberName *string

	SplitMode     string `gorm:"type:varchar(10);not null;default:'NONE'"`
	AATotalShares *int
	AAPaidShares  int `gorm:"not null;default:0"`

	RelocatedTo *uuid.UUID `gorm:"type:uuid"`
	Version     int        `gorm:"not null;default:0"`
	CreatedBy   uuid.UUID  `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	VoidedAt    *time.Time
	ArchivedAt  *time.Time `gorm:"index"`

	Items       []OrderItem       `gorm:"foreignKey:OrderID"`
	Payments    []PaymentRecord   `gorm:"foreignKey:OrderID"`
	Splits      []SplitRecord     `gorm:"foreignKey:OrderID"`
	Redemptions []StampRedemption `gorm:"foreignKey:OrderID"`
}

// IsTerminal reports whether the order accepts no further ledger mutation.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderCompleted, OrderVoid, OrderMerged, OrderMoved:
		return true
	}
	return false
}

// ItemByID returns the item with the given instance id, or nil.
func (o *Order) ItemByID(id uuid.UUID) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i]
		}
	}
	return nil
}

// PaymentByID returns the payment with the given id, or nil.
func (o *Order) PaymentByID(id uuid.UUID) *PaymentRecord {
	for i := range o.Payments {
		if o.Payments[i].ID == id {
			return &o.Payments[i]
		}
	}
	return nil
}

// SplitByID returns the split record with the given id, or nil.
func (o *Order) SplitByID(id uuid.UUID) *SplitRecord {
	for i := range o.Splits {
		if o.Splits[i].ID == id {
			return &o.Splits[i]
		}
	}
	return nil
}

// PaidQuantity returns how many units of an item instance item splits have
// discharged.
func (o *Order) PaidQuantity(itemID uuid.UUID) int {
	if o.PaidQuantities == nil {
		return 0
	}
	return o.PaidQuantities[itemID.String()]
}

// Clone returns a deep copy so a command can be computed in memory and
// discarded on failure.
func (o *Order) Clone() *Order {
	c := *o
	c.VoidKind = cloneStr(o.VoidKind)
	c.VoidReason = cloneStr(o.VoidReason)
	c.OrderDiscountKind = cloneStr(o.OrderDiscountKind)
	c.OrderDiscountValue = cloneDec(o.OrderDiscountValue)
	c.OrderDiscountBy = cloneUUID(o.OrderDiscountBy)
	c.OrderSurchargeKind = cloneStr(o.OrderSurchargeKind)
	c.OrderSurchargeValue = cloneDec(o.OrderSurchargeValue)
	c.OrderSurchargeBy = cloneUUID(o.OrderSurchargeBy)
	c.MemberID = cloneUUID(o.MemberID)
	c.MemberName = cloneStr(o.MemberName)
	c.RelocatedTo = cloneUUID(o.RelocatedTo)
	c.CompletedAt = cloneTime(o.CompletedAt)
	c.VoidedAt = cloneTime(o.VoidedAt)
	c.ArchivedAt = cloneTime(o.ArchivedAt)
	if o.AATotalShares != nil {
		n := *o.AATotalShares
		c.AATotalShares = &n
	}
	c.PaidQuantities = make(map[string]int, len(o.PaidQuantities))
	for k, v := range o.PaidQuantities {
		c.PaidQuantities[k] = v
	}
	c.Items = make([]OrderItem, len(o.Items))
	for i := range o.Items {
		c.Items[i] = o.Items[i].clone()
	}
	c.Payments = make([]PaymentRecord, len(o.Payments))
	for i := range o.Payments {
		c.Payments[i] = o.Payments[i].clone()
	}
	c.Splits = make([]SplitRecord, len(o.Splits))
	for i := range o.Splits {
		c.Splits[i] = o.Splits[i].clone()
	}
	c.Redemptions = make([]StampRedemption, len(o.Redemptions))
	copy(c.Redemptions, o.Redemptions)
	return &c
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneDec(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneUUID(u *uuid.UUID) *uuid.UUID {
	if u == nil {
		return nil
	}
	v := *u
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
