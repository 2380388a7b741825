package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Schema holds every table owned by this service.
const Schema = "appellations"

func EnsureSchema(d *gorm.DB, schema string) error {
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS "` + schema + `"`).Error
}

// Migrate creates the service schema and auto-migrates the given models into it.
func Migrate(d *gorm.DB, models ...interface{}) error {
	if err := EnsureSchema(d, Schema); err != nil {
		return fmt.Errorf("ensure schema %s: %w", Schema, err)
	}
	if err := d.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrate %s tables: %w", Schema, err)
	}
	return nil
}
