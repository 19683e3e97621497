package db

import (
	"library_system/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus"

	"gorm.io/driver/mysql" // MySQL driver for GORM
	"gorm.io/gorm"         // GORM ORM library
	"gorm.io/gorm/logger"  // GORM logger levels
)

// Open connects to MySQL through GORM. Quiet mirrors production mode, where
// SQL statements are not echoed.
func Open(dsn string, quiet bool) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true} // Map driver errors to gorm.ErrDuplicatedKey etc.
	if quiet {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	return gorm.Open(mysql.Open(dsn), cfg)
}

// AutoMigrate creates or updates the users, books and transactions tables
func AutoMigrate(db *gorm.DB) error {
	// Order matters: transactions reference users and books
	return db.AutoMigrate(&domain.User{}, &domain.Book{}, &domain.Transaction{})
}

// Migrate performs automatic migration for the database schema
func Migrate(dsn string) *gorm.DB {
	db, err := Open(dsn, false) // Open a connection to the database
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err) // Log fatal error if connection fails
	}
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := AutoMigrate(db); err != nil {
		logrus.Fatalf("migration failed: %v", err) // Log fatal error if migration fails
	}
	logrus.Info("Migration completed.") // Log successful migration
	return db
}
