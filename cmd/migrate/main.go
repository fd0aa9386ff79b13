package main

import (
	"log"

	"round-lottery/internal/config"
	"round-lottery/internal/database"
)

// Runs the schema migrations once and exits
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	log.Printf("Migrations applied (%s)", cfg.Database.Driver)
}
