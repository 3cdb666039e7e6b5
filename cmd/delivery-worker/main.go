// cmd/delivery-worker/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/freshbasket/subscriptions/internal/config"
	"github.com/freshbasket/subscriptions/internal/events"
	"github.com/freshbasket/subscriptions/internal/logger"
	"github.com/freshbasket/subscriptions/internal/pricing"
)

func main() {
	lg := logger.New("delivery-worker")

	cfg := config.Load()

	// Connect to database
	db, err := NewDB(cfg.DatabaseURL)
	if err != nil {
		lg.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()
	lg.Info("Connected to database")

	if err := db.EnsureSchema(context.Background()); err != nil {
		lg.Fatal("Failed to ensure schema", "error", err)
	}

	// Pricing rules must match the ones the API quoted with.
	rules, err := pricing.LoadRules(cfg.PricingRulesPath)
	if err != nil {
		lg.Warn("Using default pricing rules", "error", err)
		rules = pricing.DefaultRules()
	}

	wallet := NewWalletClient(cfg.WalletServiceURL)
	publisher := events.NewPublisher(cfg.SubscriptionServiceURL)

	executor := NewExecutor(db, wallet, rules, publisher, lg.Std())
	worker := NewWorker(db, executor, WorkerConfigFromEnv(cfg), lg.Std())

	handler := NewHandler(worker, db, lg.Std())

	// Setup routes
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Worker endpoints
	r.HandleFunc("/worker/status", handler.GetWorkerStatus).Methods("GET")
	r.HandleFunc("/worker/trigger", handler.TriggerWorker).Methods("POST")

	// Retry queue endpoints
	r.HandleFunc("/worker/retries", handler.ListRetries).Methods("GET")
	r.HandleFunc("/worker/retries/{id}", handler.GetRetry).Methods("GET")
	r.HandleFunc("/worker/retries/{id}/retry-now", handler.RetryNow).Methods("POST")

	srv := &http.Server{
		Addr:         ":" + cfg.WorkerPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start worker loop in background
	worker.Start()

	// Handle graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		lg.Info("Server is shutting down...")

		// Stop worker first so no batch is cut off mid-charge
		worker.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			lg.Fatal("Could not gracefully shutdown the server", "error", err)
		}
		close(done)
	}()

	lg.Info("Delivery Worker starting", "port", cfg.WorkerPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		lg.Fatal("Could not listen", "port", cfg.WorkerPort, "error", err)
	}

	<-done
	lg.Info("Server stopped")
}
