// Package db connects objsync to MySQL through GORM. It persists the cache
// history that operators query after the fact.
package db

import (
	"context"

	"gorm.io/gorm"
)

// Database is a pooled GORM connection
type Database interface {
	DB() (*gorm.DB, error)
	// Migrate creates or updates the tables of models
	Migrate(ctx context.Context, models ...any) error
	Ping(ctx context.Context) error
	Close() error
}
