// cmd/delivery-worker/handlers.go
package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler handles HTTP requests for the worker
type Handler struct {
	worker *Worker
	db     *DB
	logger *log.Logger
}

// NewHandler creates a new handler instance
func NewHandler(worker *Worker, db *DB, logger *log.Logger) *Handler {
	return &Handler{
		worker: worker,
		db:     db,
		logger: logger,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbHealthy := false
	if h.db != nil && h.db.Ping() == nil {
		dbHealthy = true
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"service":          "delivery-worker",
		"status":           "healthy",
		"worker_running":   h.worker.IsRunning(),
		"database_healthy": dbHealthy,
	})
}

// GetWorkerStatus handles GET /worker/status
func (h *Handler) GetWorkerStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.worker.Status())
}

// TriggerWorker handles POST /worker/trigger
func (h *Handler) TriggerWorker(w http.ResponseWriter, r *http.Request) {
	h.logger.Println("Manual worker trigger requested")

	result, err := h.worker.TriggerManual()
	if err != nil {
		h.logger.Printf("Error during manual trigger: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to trigger worker", "TRIGGER_FAILED")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Worker triggered successfully",
		"processed":  result.Processed,
		"successful": result.Successful,
		"failed":     result.Failed,
		"duration":   result.Duration.String(),
		"deliveries": result.Deliveries,
	})
}

// ListRetries handles GET /worker/retries
func (h *Handler) ListRetries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := r.URL.Query().Get("status")
	if status == "" {
		status = RetryStatusPending
	}

	retries, err := h.db.ListRetries(ctx, status, 100)
	if err != nil {
		h.logger.Printf("Error listing retries: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list retries", "LIST_RETRIES_FAILED")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"retries": retries,
		"total":   len(retries),
		"status":  status,
	})
}

// GetRetry handles GET /worker/retries/{id}
func (h *Handler) GetRetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	retryID := mux.Vars(r)["id"]

	retry, err := h.db.GetRetryEntry(ctx, retryID)
	if err != nil {
		h.logger.Printf("Error getting retry %s: %v", retryID, err)
		respondError(w, http.StatusNotFound, "Retry not found", "RETRY_NOT_FOUND")
		return
	}

	respondJSON(w, http.StatusOK, retry)
}

// RetryNow handles POST /worker/retries/{id}/retry-now
func (h *Handler) RetryNow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	retryID := mux.Vars(r)["id"]

	h.logger.Printf("Immediate retry requested for %s", retryID)

	entry, err := h.db.GetRetryEntry(ctx, retryID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Retry not found", "RETRY_NOT_FOUND")
		return
	}

	if entry.Status != RetryStatusPending {
		respondError(w, http.StatusBadRequest, "Retry is not in pending status", "INVALID_RETRY_STATUS")
		return
	}

	result, err := h.worker.executor.ProcessRetry(ctx, entry)
	if err != nil {
		h.logger.Printf("Error processing retry %s: %v", retryID, err)
		respondError(w, http.StatusInternalServerError, "Failed to process retry", "RETRY_FAILED")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":         result.Success,
		"retry_id":        retryID,
		"order_id":        entry.OrderID,
		"subscription_id": entry.SubscriptionID,
		"transaction_id":  result.TransactionID,
		"error_code":      result.ErrorCode,
		"error_message":   result.ErrorMessage,
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
