package mysql

import (
	"github.com/Guyuepp/go-comment-engine/internal/repository/mysql/model"
	"gorm.io/gorm"
)

// Migrate creates or updates the users and comments tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.User{}, &model.Comment{})
}
