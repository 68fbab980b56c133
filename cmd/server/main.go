/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Start the notification dispatcher
  4. Create API handler with dependencies
  5. Start the sweep scheduler (catch-up pass, then periodic)
  6. Start server with graceful shutdown

CONFIGURATION:
  Flags take their defaults from the environment, so .env works for
  deployment and flags for local overrides:
    -port  PORT       HTTP server port (default: 8080)
    -db    DB_PATH    SQLite database path (default: attendance.db)
                      Use ":memory:" for an in-memory database
    -tz    TZ_NAME    IANA zone for event wall-clock times (default: UTC)
    -grace GRACE_MIN  Lateness grace window in minutes (default: 0)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweep scheduler and dispatcher
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - sweep/scheduler.go: Background sweeps
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

	"github.com/rosterly/attendance-engine/api"
	"github.com/rosterly/attendance-engine/attendance"
	"github.com/rosterly/attendance-engine/engine"
	"github.com/rosterly/attendance-engine/store/sqlite"
	"github.com/rosterly/attendance-engine/sweep"
)

func main() {
	// .env is optional; flags still win over it.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "attendance.db"), "SQLite database path")
	tzName := flag.String("tz", envStr("TZ_NAME", "UTC"), "IANA zone for event wall-clock times")
	graceMin := flag.Int("grace", envInt("GRACE_MIN", 0), "lateness grace window in minutes")
	flag.Parse()

	loc, err := time.LoadLocation(*tzName)
	if err != nil {
		log.Fatalf("Invalid time zone %q: %v", *tzName, err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Milestone notifications go to the log in this deployment.
	dispatcher := engine.NewDispatcher(engine.LogNotifier{})
	dispatcher.Start()
	defer dispatcher.Stop()

	// Initialize handler
	handler := api.NewHandler(store, engine.SystemClock{}, loc, dispatcher)
	if *graceMin > 0 {
		handler.Attendance.Policy = attendance.LatenessPolicy{
			Name:  "grace",
			Grace: time.Duration(*graceMin) * time.Minute,
		}
	}

	// Background sweeps: immediate catch-up pass, then every interval.
	scheduler := sweep.NewScheduler(store, handler.Absence, handler.Checkout)
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

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

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
