/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rental marketplace booking engine.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse command-line flags
  2. Initialize SQLite store
  3. Wire hold registry, API handler, hold sweeper
  4. Optionally seed demo data
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: rental.db)
             Use ":memory:" for an in-memory database
  -hold-ttl  How long an unpaid hold lives (default: 30m)
  -seed      Load demo marketplace data on startup

ENVIRONMENT:
  PORT, DB_PATH, HOLD_TTL override flag defaults; a local .env file is
  loaded when present. Flags win over environment.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the hold sweeper
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/rental.db"

  # Demo mode: in-memory database with seed data
  ./server -db=":memory:" -seed

  # Short hold window
  ./server -hold-ttl=5m

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/driveway/rental-engine/api"
	"github.com/driveway/rental-engine/rental"
	"github.com/driveway/rental-engine/store/sqlite"
)

func main() {
	// .env is optional; missing files are fine in production.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	// Flags (defaults come from the environment when set)
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "rental.db"), "SQLite database path")
	holdTTL := flag.Duration("hold-ttl", envDuration("HOLD_TTL", rental.DefaultHoldTTL), "lifetime of an unpaid hold")
	seed := flag.Bool("seed", false, "load demo marketplace data on startup")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire domain services
	holds := rental.NewHoldRegistry(*holdTTL)
	handler := api.NewHandler(store, holds)

	if *seed {
		if err := api.Seed(context.Background(), handler); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
		log.Println("Demo marketplace seeded")
	}

	// Background hold expiry
	sweeper := api.NewHoldSweeper(holds)
	sweeper.Start()
	defer sweeper.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
