package db

import (
	"fmt"

	"netdoc/internal/models"

	"gorm.io/gorm"
)

// Migrate creates or updates every inventory table and the indexes gorm
// tags cannot express.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if err := db.AutoMigrate(
		&models.Branch{},
		&models.Rack{},
		&models.DeviceTemplate{},
		&models.Device{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if err := MigrateRackUniqueIndex(db); err != nil {
		return fmt.Errorf("rack index: %w", err)
	}
	return nil
}

// MigrateRackUniqueIndex keeps rack names unique within a branch, ignoring
// case. MySQL gets that from its default collation; postgres and sqlite
// index lower(name).
func MigrateRackUniqueIndex(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if db.Migrator().HasIndex(&models.Rack{}, "ux_racks_branch_name") {
		return nil
	}
	switch dialect := db.Dialector.Name(); dialect {
	case "mysql":
		return db.Exec("CREATE UNIQUE INDEX `ux_racks_branch_name` ON `racks` (`branch_id`, `name`)").Error
	case "postgres":
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_racks_branch_name ON "racks" ("branch_id", lower("name"))`).Error
	case "sqlite":
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_racks_branch_name ON racks (branch_id, lower(name))`).Error
	default:
		return fmt.Errorf("unsupported dialect: %s", dialect)
	}
}
