package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parkstand-backend/config"
	"parkstand-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := Migrate(gormDB); err != nil {
		return nil, err
	}
	return gormDB, nil
}

// Migrate creates the tables and the partial index backing token
// uniqueness among active sessions. Shared with test setup.
func Migrate(gormDB *gorm.DB) error {
	if err := gormDB.AutoMigrate(
		&model.Stand{},
		&model.ParkingSession{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	// Backstop for the store's in-transaction token check. Partial
	// indexes are supported by both postgres and sqlite.
	ddl := "CREATE UNIQUE INDEX IF NOT EXISTS idx_active_session_token ON parking_sessions (token_id) WHERE status = 'active'"
	if err := gormDB.Exec(ddl).Error; err != nil {
		return fmt.Errorf("failed to create active-token index: %w", err)
	}
	return nil
}
