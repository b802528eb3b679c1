package repository

import (
	"fmt"

	"github.com/smarthubultra/identity-service/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres when a DSN is configured, otherwise to an
// embedded sqlite database, and migrates the schema.
func Open(databaseURL, sqlitePath string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if databaseURL != "" {
		dialector = postgres.Open(databaseURL)
	} else {
		dialector = sqlite.Open(sqlitePath)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema for every tracked entity.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.UserProfile{},
		&domain.Session{},
		&domain.Fingerprint{},
		&domain.AdminGrant{},
		&domain.InviteRecord{},
		&domain.MaintenanceLog{},
	)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
