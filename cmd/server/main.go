/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the tenancy engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Load the NZ holiday calendar
  4. Start the schedule regeneration worker
  5. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: tenancy.db)
           Use ":memory:" for an in-memory database
  -region  Region for anniversary-day holidays (default: none)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the regeneration worker (finishes the in-flight item)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/tenancy.db"

  # Run with Auckland anniversary observed
  ./server -region=auckland

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
	"syscall"
	"time"

	"github.com/warp/tenancy-engine/api"
	"github.com/warp/tenancy-engine/engine"
	"github.com/warp/tenancy-engine/ledger"
	"github.com/warp/tenancy-engine/nzcalendar"
	"github.com/warp/tenancy-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "tenancy.db", "SQLite database path")
	region := flag.String("region", "", "region for anniversary-day holidays")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Holiday calendar
	calendar := engine.NewWorkingDayCalendar(nzcalendar.MustNew(), *region)

	// Regeneration pipeline: single consumer serializes per-tenant work
	queue := ledger.NewQueue(store)
	reconciler := &ledger.Reconciler{
		Tenancies:   store,
		Obligations: store,
		Calendar:    calendar,
	}
	worker := ledger.NewWorker(queue, store, reconciler)
	worker.Start()
	defer worker.Stop()

	// Handler and router
	handler := api.NewHandler(store, queue, calendar)
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
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
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
