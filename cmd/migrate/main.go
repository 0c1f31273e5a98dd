package main

import (
	"log"

	"matchmarket-service/internal/config"
	"matchmarket-service/internal/database"
)

func main() {
	// Load environment variables
	config.LoadEnv()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// Initialize Database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}

	// Run Migrations
	log.Println("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	log.Println("Migrations completed successfully!")
}
