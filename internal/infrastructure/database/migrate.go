package database

import (
	"fmt"

	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	logger.Info("Creating PostgreSQL extensions...")
	if err := createExtensions(db); err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	logger.Info("Running GORM auto-migrations...")
	err := db.AutoMigrate(
		&model.Payment{},
		&model.PaymentEvent{},
		&model.CryptoTransfer{},
		&model.WebhookNotification{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	logger.Info("Creating custom indexes...")
	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Creating database functions...")
	if err := createDatabaseFunctions(db, logger); err != nil {
		logger.Error("Failed to create database functions", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates custom indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	statements := []string{
		// Membership lookup by any gateway id
		`CREATE INDEX IF NOT EXISTS idx_payments_gateway_ids ON payments USING GIN (gateway_ids)`,
		// At most one successful payout per payment
		`CREATE UNIQUE INDEX IF NOT EXISTS unique_successful_transfer_per_payment ON crypto_transfers (payment_id) WHERE status = 'success'`,
		`CREATE INDEX IF NOT EXISTS idx_payments_stale_capture ON payments (updated_at) WHERE status IN ('authorized', 'error_capture')`,
		`CREATE INDEX IF NOT EXISTS idx_payments_user_created ON payments (user_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// createExtensions creates required PostgreSQL extensions
func createExtensions(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		return err
	}
	return nil
}

// createDatabaseFunctions makes payment_events append-only
func createDatabaseFunctions(db *gorm.DB, logger *zap.Logger) error {
	rejectSQL := `
CREATE OR REPLACE FUNCTION reject_payment_event_mutation() RETURNS TRIGGER AS $$
BEGIN
    RAISE EXCEPTION 'payment_events is append-only (% rejected)', TG_OP;
END;
$$ LANGUAGE plpgsql;`

	if err := db.Exec(rejectSQL).Error; err != nil {
		logger.Error("Failed to create append-only trigger function", zap.Error(err))
		return err
	}

	dropSQL := `DROP TRIGGER IF EXISTS payment_events_append_only ON payment_events;`
	if err := db.Exec(dropSQL).Error; err != nil {
		logger.Warn("Failed to drop existing trigger", zap.String("table", "payment_events"), zap.Error(err))
	}

	triggerSQL := fmt.Sprintf(`
CREATE TRIGGER payment_events_append_only
    BEFORE UPDATE OR DELETE ON %s
    FOR EACH ROW EXECUTE FUNCTION reject_payment_event_mutation();`, model.PaymentEvent{}.TableName())

	if err := db.Exec(triggerSQL).Error; err != nil {
		logger.Error("Failed to create append-only trigger", zap.Error(err))
		return err
	}
	logger.Info("Created append-only trigger", zap.String("table", "payment_events"))

	return nil
}
