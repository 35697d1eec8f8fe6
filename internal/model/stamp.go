package model

import (
	"time"

	"github.com/google/uuid"
)

// Reward strategies. Anything other than DESIGNATED and ECONOMIZADOR is
// treated as generous.
const (
	StrategyDesignated   = "DESIGNATED"
	StrategyEconomizador = "ECONOMIZADOR"
	StrategyGenerous     = "GENEROUS"
)

// StampActivity is a loyalty rule configured by the loyalty back office.
type StampActivity struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name           string    `gorm:"not null"`
	Strategy       string    `gorm:"type:varchar(20);not null"`
	RequiredStamps int       `gorm:"not null"`
	RewardQuantity int       `gorm:"not null;default:1"`
	// Reward targets: items that may receive the reward.
	RewardProductIDs  []string `gorm:"serializer:json;type:jsonb"`
	RewardCategoryIDs []string `gorm:"serializer:json;type:jsonb"`
	// DesignatedProductID is the fixed reward product for DESIGNATED.
	DesignatedProductID *uuid.UUID `gorm:"type:uuid"`
	// Stamp targets: items whose purchase earns stamps.
	StampProductIDs    []string `gorm:"serializer:json;type:jsonb"`
	StampCategoryIDs   []string `gorm:"serializer:json;type:jsonb"`
	AllowFreeSelection bool     `gorm:"not null;default:false"`
	Active             bool     `gorm:"not null;default:true"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StampProgress is a member's stamp count for one activity.
type StampProgress struct {
	MemberID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	ActivityID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	CurrentStamps int       `gorm:"not null;default:0"`
	UpdatedAt     time.Time
}

func (StampProgress) TableName() string { return "stamp_progress" }

// StampRedemption records that an activity's reward was applied to an item of
// an order. AddedItem is set when the reward item was created for the
// redemption rather than matched from the cart.
type StampRedemption struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID    uuid.UUID `gorm:"type:uuid;index;not null"`
	ActivityID uuid.UUID `gorm:"type:uuid;not null"`
	ItemID     uuid.UUID `gorm:"type:uuid;not null"`
	Quantity   int       `gorm:"not null"`
	AddedItem  bool      `gorm:"not null;default:false"`
	Cancelled  bool      `gorm:"not null;default:false"`
	RedeemedBy uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt  time.Time
}
