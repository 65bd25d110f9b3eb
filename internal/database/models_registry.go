package database

import "forum/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Users come before posts and posts before upvotes so foreign keys resolve.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Upvote{},
	}
}
