package repository

import (
	"context"

	"settlepos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommandRepository is the idempotency log of applied commands.
type CommandRepository interface {
	// Find returns the record of commandID applied to orderID.
	Find(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, commandID string) (*model.CommandRecord, error)
	// FindOpen returns the openOrder record for commandID; the order id is
	// not known to the caller before the order exists.
	FindOpen(ctx context.Context, commandID string) (*model.CommandRecord, error)
	Create(ctx context.Context, tx *gorm.DB, rec *model.CommandRecord) error
}

// OpenOrderCommand is the command name openOrder records are stored under.
const OpenOrderCommand = "openOrder"

type commandRepo struct{ db *gorm.DB }

func NewCommandRepository(db *gorm.DB) CommandRepository { return &commandRepo{db: db} }

func (r *commandRepo) Find(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, commandID string) (*model.CommandRecord, error) {
	if tx == nil {
		tx = r.db
	}
	var rec model.CommandRecord
	err := tx.WithContext(ctx).
		Where("order_id = ? AND command_id = ?", orderID, commandID).
		Take(&rec).Error
	return &rec, err
}

func (r *commandRepo) FindOpen(ctx context.Context, commandID string) (*model.CommandRecord, error) {
	var rec model.CommandRecord
	err := r.db.WithContext(ctx).
		Where("command_id = ? AND name = ?", commandID, OpenOrderCommand).
		Take(&rec).Error
	return &rec, err
}

func (r *commandRepo) Create(ctx context.Context, tx *gorm.DB, rec *model.CommandRecord) error {
	return tx.WithContext(ctx).Create(rec).Error
}
