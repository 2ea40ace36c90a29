package main

import (
	"context"
	"log"

	"github.com/arcane-labs/credits-backend/config"
	"github.com/arcane-labs/credits-backend/controllers"
	"github.com/arcane-labs/credits-backend/routes"
	"github.com/arcane-labs/credits-backend/services"
	"github.com/arcane-labs/credits-backend/utils"
)

func main() {
	// Initialize logger
	if err := utils.InitLogger(); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	// Load environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("Error loading config: %v", err)
		log.Fatal("Error loading config:", err)
	}

	// Initialize database
	config.InitDB()

	// Seed initial admin account
	if err := controllers.CreateSampleAdmin(); err != nil {
		utils.LogError("Failed to create sample admin: %v", err)
		log.Fatal("Failed to create sample admin:", err)
	}

	// Wire the payment provider and the service layer
	verifier := services.NewGooglePlayVerifier(context.Background(), cfg)
	controllers.InitControllers(config.DB, cfg, verifier)

	// Set up router
	router := routes.SetupRouter()

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	utils.LogInfo("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		utils.LogError("Error starting server: %v", err)
		log.Fatal("Error starting server:", err)
	}
}
