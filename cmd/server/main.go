package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deckmuse/deckmuse/backend/internal/api"
	"github.com/deckmuse/deckmuse/backend/internal/api/handlers"
	"github.com/deckmuse/deckmuse/backend/internal/database"
	"github.com/deckmuse/deckmuse/backend/internal/llm"
	"github.com/deckmuse/deckmuse/backend/internal/services"
)

func main() {
	// Card database path (MTGJSON AllPrintings sqlite snapshot)
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./AllPrintings.sqlite"
	}

	if err := database.Initialize(dbPath); err != nil {
		log.Fatalf("Failed to initialize card database: %v", err)
	}

	// Tool backends
	cardSearch := services.NewCardSearchService(database.GetDB())
	glossary := services.NewGlossaryService()
	combos := services.NewComboService()

	// Tool registry is built once and read-only from here on
	registry := llm.NewRegistry(cardSearch, glossary, combos)
	chatService := llm.NewChatService(registry)
	if !chatService.Enabled() {
		log.Printf("WARNING: chat completions will fail until GEMINI_API_KEY is set")
	}

	router := api.SetupRouter(handlers.NewChatHandler(chatService))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
