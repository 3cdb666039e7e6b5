// cmd/delivery-worker/retry.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/freshbasket/subscriptions/internal/events"
	"github.com/freshbasket/subscriptions/internal/models"
)

// ProcessRetry re-attempts the wallet charge for one retry entry. Success
// marks the order paid; a hard decline or an exhausted attempt budget
// moves the order to payment_due and closes the entry.
func (e *Executor) ProcessRetry(ctx context.Context, entry *RetryEntry) (*ChargeResult, error) {
	e.logger.Printf("Processing retry %s for order %s (attempt %d/%d)",
		entry.ID, entry.OrderID, entry.Attempt, entry.MaxAttempts)

	if err := e.db.UpdateRetryStatus(ctx, entry.ID, RetryStatusProcessing); err != nil {
		e.logger.Printf("Error marking retry as processing: %v", err)
	}

	order, err := e.db.GetDeliveryOrder(ctx, entry.OrderID)
	if err != nil {
		e.logger.Printf("Error getting order %s: %v", entry.OrderID, err)
		result := &ChargeResult{
			Success:      false,
			ErrorCode:    "ORDER_ERROR",
			ErrorMessage: err.Error(),
		}
		e.db.UpdateRetryAfterAttempt(ctx, entry, result, e.retryPolicy)
		return result, err
	}

	// A fresh idempotency key per attempt; reusing the original key would
	// replay the declined response.
	resp, err := e.wallet.Debit(ctx, &DebitRequest{
		UserID:         order.UserID,
		Amount:         order.Amount,
		IdempotencyKey: fmt.Sprintf("%s:%d", order.ID, entry.Attempt),
		Reference:      "subscription " + order.SubscriptionID,
	})

	var result *ChargeResult
	if err != nil {
		result = &ChargeResult{
			Success:      false,
			ErrorCode:    "WALLET_ERROR",
			ErrorMessage: err.Error(),
		}
	} else {
		result = &ChargeResult{
			Success:       resp.Success,
			TransactionID: resp.TransactionID,
			ErrorCode:     resp.ErrorCode,
			ErrorMessage:  resp.ErrorMessage,
		}
	}

	finalStatus, uerr := e.db.UpdateRetryAfterAttempt(ctx, entry, result, e.retryPolicy)
	if uerr != nil {
		e.logger.Printf("Error updating retry after attempt: %v", uerr)
	}

	if result.Success {
		order.PaymentStatus = models.PaymentStatusPaid
		order.TransactionID = result.TransactionID
		if err := e.db.UpdateOrderPayment(ctx, order.ID, order.PaymentStatus, order.TransactionID); err != nil {
			e.logger.Printf("Error updating payment for order %s: %v", order.ID, err)
		}
		e.publishDelivery(events.DeliveryCharged, order, "")
		e.logger.Printf("Retry succeeded for order %s: transaction=%s", order.ID, result.TransactionID)
		return result, nil
	}

	if finalStatus == RetryStatusFailed || finalStatus == RetryStatusExhausted {
		order.PaymentStatus = models.PaymentStatusPaymentDue
		if err := e.db.UpdateOrderPayment(ctx, order.ID, order.PaymentStatus, ""); err != nil {
			e.logger.Printf("Error updating payment for order %s: %v", order.ID, err)
		}
		e.publishDelivery(events.DeliveryPaymentDue, order, result.ErrorCode)
		e.logger.Printf("Retries %s for order %s, payment due: %s", finalStatus, order.ID, result.ErrorCode)
	} else {
		e.logger.Printf("Retry failed for order %s, next attempt scheduled: %s", order.ID, result.ErrorCode)
	}

	return result, nil
}

// ExecuteRetryBatch processes a batch of due retries
func (e *Executor) ExecuteRetryBatch(ctx context.Context, entries []RetryEntry) *BatchResult {
	start := time.Now()
	result := &BatchResult{
		Deliveries: make([]*DeliveryResult, 0, len(entries)),
	}

	for i := range entries {
		entry := &entries[i]
		chargeResult, err := e.ProcessRetry(ctx, entry)
		if err != nil {
			result.add(&DeliveryResult{
				OrderID:        entry.OrderID,
				SubscriptionID: entry.SubscriptionID,
				Success:        false,
				ErrorMessage:   err.Error(),
			})
			continue
		}

		result.add(&DeliveryResult{
			OrderID:        entry.OrderID,
			SubscriptionID: entry.SubscriptionID,
			Success:        chargeResult.Success,
			TransactionID:  chargeResult.TransactionID,
			ErrorCode:      chargeResult.ErrorCode,
			ErrorMessage:   chargeResult.ErrorMessage,
		})
	}

	result.Duration = time.Since(start)
	return result
}
