package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"refbot/internal/config"
	"refbot/internal/models"
)

// Migrate creates or updates the accounts, withdrawal_requests and settings tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Account{}, &models.WithdrawalRequest{}, &models.Setting{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Open connects the driver selected by cfg.DBDriver.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case "postgres", "":
		return ConnectPostgres(cfg, log)
	case "sqlite":
		return ConnectSQLite(cfg.SQLitePath, log)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
