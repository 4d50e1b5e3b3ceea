package database

import (
	"fmt"

	"flowchat-gateway/internal/config"
	"flowchat-gateway/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init opens the database selected by the configuration and runs migrations.
// DATABASE_URL selects postgres; without it the sqlite file at DB_PATH is
// used, which keeps local runs and tests dependency-free.
func Init(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if cfg.DatabaseURL != "" {
		dialector = postgres.Open(cfg.DatabaseURL)
	} else {
		dialector = sqlite.Open(cfg.DBPath)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate runs the schema migration for the gateway entities.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Contact{},
		&models.Message{},
	); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}
