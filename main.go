package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/cmd"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/config"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
		// Use default logger config if main config fails
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		// Initialize logger with configuration
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	mainLog := logger.WithComponent("main")
	mainLog.Debug().Msg("Starting DocAnalyser CLI")

	cmd.Execute()
}
