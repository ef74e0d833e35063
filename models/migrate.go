package models

import "gorm.io/gorm"

// AutoMigrate creates or updates the tables the publishing workflow uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Page{}, &PublishingWorkflow{})
}

// MigrateEmbedded runs AutoMigrate on SQLite, where the database usually lives
// with the process (or only in memory). Server databases are migrated with
// publishctl migrate. It reports whether a migration ran.
func MigrateEmbedded(db *gorm.DB) (bool, error) {
	if db.Dialector.Name() != "sqlite" {
		return false, nil
	}
	return true, AutoMigrate(db)
}
