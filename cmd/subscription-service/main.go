package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/freshbasket/subscriptions/internal/cache"
	"github.com/freshbasket/subscriptions/internal/config"
	"github.com/freshbasket/subscriptions/internal/logger"
	"github.com/freshbasket/subscriptions/internal/pricing"
	"github.com/freshbasket/subscriptions/internal/websocket"
)

func main() {
	lg := logger.New("subscription-service")

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

	// Redis is optional; without it product lookups skip the cache.
	var redisClient *cache.Client
	if redisClient, err = cache.NewRedisClient(cfg.RedisURL); err != nil {
		lg.Warn("Redis unavailable, product cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		lg.Info("Connected to Redis")
	}

	// Pricing rules; fall back to built-in defaults when the file is
	// missing so a bare checkout still works.
	rules, err := pricing.LoadRules(cfg.PricingRulesPath)
	if err != nil {
		lg.Warn("Using default pricing rules", "error", err)
		rules = pricing.DefaultRules()
	} else {
		lg.Info("Loaded pricing rules", "path", cfg.PricingRulesPath, "coupons", len(rules.Coupons))
	}

	catalog := NewCatalogClient(cfg.CatalogServiceURL, redisClient, cfg.ProductCacheTTL, lg.Std())

	// Admin event hub
	hub := websocket.NewHub(lg.Std())
	go hub.Run()

	handler := NewHandler(db, catalog, rules, hub, lg.Std())

	// Setup router
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.Health).Methods("GET")

	// Subscriptions endpoints
	r.HandleFunc("/subscriptions", handler.CreateSubscription).Methods("POST")
	r.HandleFunc("/subscriptions", handler.ListSubscriptions).Methods("GET")
	r.HandleFunc("/subscriptions/{id}", handler.GetSubscription).Methods("GET")
	r.HandleFunc("/subscriptions/{id}", handler.UpdateSchedule).Methods("PUT")
	r.HandleFunc("/subscriptions/{id}/pause", handler.PauseSubscription).Methods("POST")
	r.HandleFunc("/subscriptions/{id}/resume", handler.ResumeSubscription).Methods("POST")
	r.HandleFunc("/subscriptions/{id}/cancel", handler.CancelSubscription).Methods("POST")
	r.HandleFunc("/subscriptions/{id}/deliveries", handler.ListDeliveries).Methods("GET")

	// Worker event intake and admin live feed
	r.HandleFunc("/internal/events", handler.IntakeEvent).Methods("POST")
	r.HandleFunc("/ws/admin", hub.ServeWs)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Handle graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		lg.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			lg.Fatal("Could not gracefully shutdown the server", "error", err)
		}
		close(done)
	}()

	lg.Info("Subscription Service starting", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		lg.Fatal("Could not listen", "port", cfg.Port, "error", err)
	}

	<-done
	lg.Info("Server stopped")
}
