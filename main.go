package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"goparam/internal/config"
	"goparam/internal/container"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if err := appContainer.InitWithDatabase(ctx); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	log.Printf("Run source: %s", appContainer.Source.Describe())
	log.Printf("Reports are written to %s", appContainer.Writer.Dir())

	server, err := appContainer.HTTPHandler()
	if err != nil {
		log.Fatalf("Failed to build HTTP handler: %v", err)
	}
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
