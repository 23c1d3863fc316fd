package config

import (
	"fmt"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DSN builds the Postgres connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

// InitDB opens the database connection and migrates the payment schema
func InitDB(config *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(config.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	utils.LogInfo("Database connected and migrated (%s@%s:%s/%s)", config.DBUser, config.DBHost, config.DBPort, config.DBName)
	return db, nil
}

// Migrate auto-migrates every payment model
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
