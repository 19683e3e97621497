package main

import (
	"context" // Context for the seed

	"github.com/sirupsen/logrus" // Logging

	"library_system/internal/accounts" // Admin seed
	"library_system/internal/config"   // Configuration
	"library_system/internal/db"       // Database migration
	"library_system/internal/store"    // Repositories
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	gdb := db.Migrate(cfg.DSN())

	// Seed the bootstrap admin when configured
	if cfg.AdminEmail == "" || cfg.AdminPass == "" {
		logrus.Info("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin seed")
		return
	}
	acc := accounts.NewService(store.New(gdb), cfg.JWTSecret, logrus.StandardLogger())
	created, err := acc.EnsureAdmin(context.Background(), cfg.AdminName, cfg.AdminEmail, cfg.AdminPass)
	if err != nil {
		logrus.Fatalf("admin seed failed: %v", err)
	}
	if !created {
		logrus.WithField("email", cfg.AdminEmail).Info("Admin account already exists")
	}
}
