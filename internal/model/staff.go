package model

import (
	"time"

	"github.com/google/uuid"
)

// Staff roles.
const (
	RoleCashier    = "cashier"
	RoleSupervisor = "supervisor"
	RoleManager    = "manager"
)

// Staff stores terminal users with role-based access.
// Permissions holds grants on top of the role defaults.
type Staff struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	Email        *string
	PasswordHash string   `gorm:"not null"`
	Role         string   `gorm:"type:varchar(20);not null"`
	Permissions  []string `gorm:"serializer:json;type:jsonb"`
	Active       bool     `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Staff) TableName() string { return "staff" }
