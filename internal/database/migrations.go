package database

import (
	"gorm.io/gorm"

	"github.com/ovationhq/ovation/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.Article{},
		&models.Comment{},
		&models.Reaction{},
		&models.Notification{},
	)
}
