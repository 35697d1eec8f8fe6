package infra

import (
	"fmt"

	"settlepos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, migrates the ledger
// tables and applies the idempotent SQL patches GORM cannot express
// (sequences, partial indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table, then applies schema patches.
// Integration tests call it directly against a throwaway container.
func RunMigrations(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return fmt.Errorf("extension pgcrypto: %w", err)
	}
	if err := db.AutoMigrate(
		&model.Category{},
		&model.Product{},
		&model.PricingRule{},
		&model.Staff{},
		&model.Member{},
		&model.StampActivity{},
		&model.StampProgress{},
		&model.Order{},
		&model.OrderItem{},
		&model.PaymentRecord{},
		&model.SplitRecord{},
		&model.StampRedemption{},
		&model.CommandRecord{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate
// cannot handle on its own. Each statement uses IF NOT EXISTS semantics so
// re-running on an already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"receipt number sequence",
			`CREATE SEQUENCE IF NOT EXISTS orders_receipt_number_seq START 1000`},
		// archive sweeper scans terminal, unarchived orders by age
		{"partial index for archive sweep", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_orders_archivable') THEN
    CREATE INDEX idx_orders_archivable
        ON orders (updated_at)
        WHERE archived_at IS NULL AND status IN ('COMPLETED', 'VOID', 'MERGED', 'MOVED');
  END IF;
END $$`},
		// one active redemption per activity and order
		{"unique active redemption", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_redemption_active') THEN
    CREATE UNIQUE INDEX idx_redemption_active
        ON stamp_redemptions (order_id, activity_id)
        WHERE cancelled = false;
  END IF;
END $$`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
