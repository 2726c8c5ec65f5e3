/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cash register session server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment configuration
  2. Initialize store (Postgres when DATABASE_URL is set, else SQLite)
  3. Connect the Redis report cache when REDIS_ADDR is set
  4. Create the session engine and API handler
  5. Start server with graceful shutdown

ENVIRONMENT:
  PORT                HTTP server port (default: 8080)
  ALLOWED_ORIGIN      CORS origin for back-office frontends
  DATABASE_URL        Postgres connection string (optional)
  SQLITE_PATH         SQLite database path (default: registers.db,
                      ":memory:" for in-memory)
  REDIS_ADDR          Redis address for report caching (optional)
  REDIS_PASSWORD      Redis password
  REDIS_DB            Redis database index
  REPORT_TTL_MINUTES  Cached report lifetime (default: 1440)
  AUTH_SECRET         HMAC secret for bearer tokens (required)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close cache and database connections
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Environment configuration
*/
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mirlondev/magasin-sub002/api"
	"github.com/mirlondev/magasin-sub002/cache"
	"github.com/mirlondev/magasin-sub002/config"
	"github.com/mirlondev/magasin-sub002/register"
	"github.com/mirlondev/magasin-sub002/store/postgres"
	"github.com/mirlondev/magasin-sub002/store/sqlite"
)

func main() {
	cfg := config.Load()

	if cfg.AuthSecret == "" {
		log.Fatal("AUTH_SECRET must be set")
	}

	// Initialize store
	var st register.Store
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pg.Close()
		st = pg
		log.Println("Using Postgres store")
	} else {
		sq, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer sq.Close()
		st = sq
		log.Printf("Using SQLite store at %s", cfg.SQLitePath)
	}

	// Optional report cache
	var reports *cache.ReportCache
	if cfg.RedisAddr != "" {
		reports = cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			time.Duration(cfg.ReportTTLMinutes)*time.Minute)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := reports.Ping(ctx)
		cancel()
		if err != nil {
			log.Printf("Warning: Redis unreachable, reports will be recomputed: %v", err)
			reports = nil
		} else {
			defer reports.Close()
			log.Printf("Report cache enabled at %s", cfg.RedisAddr)
		}
	}

	// Wire the engine. Roles come from verified token claims; payments
	// posted through the API feed the close-time breakdown.
	payments := register.NewMemoryPayments()
	service := register.NewService(st, api.ContextIdentity{}, payments)
	handler := api.NewHandler(service, st, payments, reports)
	verifier := api.NewVerifier(cfg.AuthSecret)

	router := api.NewRouter(handler, verifier, []string{cfg.AllowedOrigin})

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%s", cfg.Port)
		log.Printf("📊 API available at http://localhost:%s/api", cfg.Port)
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
