package model

import (
	"time"

	"github.com/google/uuid"
)

// CommandRecord is the idempotency log: one row per applied command, holding
// the snapshot returned to the caller so a retry gets the identical answer.
type CommandRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_command_order"`
	CommandID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_command_order;index"`
	Name      string    `gorm:"type:varchar(40);not null"`
	ActorID   uuid.UUID `gorm:"type:uuid;not null"`
	Snapshot  []byte    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
}
