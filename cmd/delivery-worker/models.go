// cmd/delivery-worker/models.go
package main

import (
	"time"

	"github.com/freshbasket/subscriptions/internal/config"
)

// WorkerConfig holds the delivery worker loop configuration
type WorkerConfig struct {
	TickInterval time.Duration
	BatchSize    int
	Enabled      bool
}

// DefaultWorkerConfig returns the default worker configuration
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		TickInterval: 60 * time.Second,
		BatchSize:    100,
		Enabled:      true,
	}
}

// WorkerConfigFromEnv builds the worker configuration from the shared
// service config.
func WorkerConfigFromEnv(cfg *config.Config) *WorkerConfig {
	return &WorkerConfig{
		TickInterval: cfg.WorkerTickInterval,
		BatchSize:    cfg.WorkerBatchSize,
		Enabled:      cfg.WorkerEnabled,
	}
}

// WorkerStatus represents the current state of the worker loop
type WorkerStatus struct {
	Running       bool       `json:"running"`
	LastRun       *time.Time `json:"last_run,omitempty"`
	NextRun       *time.Time `json:"next_run,omitempty"`
	ProcessedLast int        `json:"processed_last"`
	PendingRetries int       `json:"pending_retries"`
	TickInterval  string     `json:"tick_interval"`
}

// ChargeResult represents the result of one wallet charge attempt
type ChargeResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// DeliveryResult holds the outcome of generating one delivery
type DeliveryResult struct {
	OrderID        string `json:"order_id,omitempty"`
	SubscriptionID string `json:"subscription_id"`
	Success        bool   `json:"success"`
	PaymentStatus  string `json:"payment_status,omitempty"`
	TransactionID  string `json:"transaction_id,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// BatchResult holds the results of one batch execution
type BatchResult struct {
	Processed  int               `json:"processed"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Deliveries []*DeliveryResult `json:"deliveries,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

func (r *BatchResult) add(dr *DeliveryResult) {
	r.Deliveries = append(r.Deliveries, dr)
	r.Processed++
	if dr.Success {
		r.Successful++
	} else {
		r.Failed++
	}
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
