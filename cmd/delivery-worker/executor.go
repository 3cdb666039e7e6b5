// cmd/delivery-worker/executor.go
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/freshbasket/subscriptions/internal/events"
	"github.com/freshbasket/subscriptions/internal/models"
	"github.com/freshbasket/subscriptions/internal/pricing"
	"github.com/freshbasket/subscriptions/internal/schedule"
)

// Executor generates delivery orders for due subscriptions and charges
// them
type Executor struct {
	db          *DB
	wallet      *WalletClient
	rules       *pricing.Rules
	retryPolicy *RetryPolicy
	publisher   *events.Publisher
	logger      *log.Logger
}

// NewExecutor creates a new executor instance
func NewExecutor(db *DB, wallet *WalletClient, rules *pricing.Rules, publisher *events.Publisher, logger *log.Logger) *Executor {
	return &Executor{
		db:          db,
		wallet:      wallet,
		rules:       rules,
		retryPolicy: DefaultRetryPolicy(),
		publisher:   publisher,
		logger:      logger,
	}
}

// priceDelivery prices one delivery from the subscription's item snapshot.
// A coupon that stopped being valid since the subscription was created
// must not block groceries, so coupon failures fall back to an unpriced
// coupon and the returned error reports what was skipped.
func priceDelivery(rules *pricing.Rules, sub *models.Subscription, now time.Time) (*pricing.Quote, error) {
	lines := make([]pricing.LineItem, 0, len(sub.Items))
	for _, item := range sub.Items {
		lines = append(lines, pricing.LineItem{
			ProductID: item.ProductID,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	quote, err := rules.Quote(lines, sub.CouponCode, now)
	if err == nil {
		return quote, nil
	}
	if _, ok := err.(pricing.CouponError); !ok {
		return nil, err
	}

	quote, qerr := rules.Quote(lines, "", now)
	if qerr != nil {
		return nil, qerr
	}
	return quote, err
}

// ChargeWallet attempts to collect the order amount from the user's
// wallet
func (e *Executor) ChargeWallet(ctx context.Context, order *models.DeliveryOrder) *ChargeResult {
	resp, err := e.wallet.Debit(ctx, &DebitRequest{
		UserID:         order.UserID,
		Amount:         order.Amount,
		IdempotencyKey: order.ID,
		Reference:      "subscription " + order.SubscriptionID,
	})
	if err != nil {
		e.logger.Printf("Error charging wallet for order %s: %v", order.ID, err)
		return &ChargeResult{
			Success:      false,
			ErrorCode:    "WALLET_ERROR",
			ErrorMessage: err.Error(),
		}
	}

	return &ChargeResult{
		Success:       resp.Success,
		TransactionID: resp.TransactionID,
		ErrorCode:     resp.ErrorCode,
		ErrorMessage:  resp.ErrorMessage,
	}
}

// ProcessSubscription generates one delivery order for a due subscription,
// collects payment and advances the next delivery time.
func (e *Executor) ProcessSubscription(ctx context.Context, sub *models.Subscription) *DeliveryResult {
	now := time.Now()

	quote, err := priceDelivery(e.rules, sub, now)
	if err != nil {
		if quote == nil {
			e.logger.Printf("Error pricing delivery for subscription %s: %v", sub.ID, err)
			return &DeliveryResult{
				SubscriptionID: sub.ID,
				Success:        false,
				ErrorCode:      "PRICING_ERROR",
				ErrorMessage:   err.Error(),
			}
		}
		e.logger.Printf("Coupon %s skipped for subscription %s: %v", sub.CouponCode, sub.ID, err)
	}

	order := &models.DeliveryOrder{
		ID:             "del_" + uuid.New().String(),
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		ScheduledFor:   sub.NextDeliveryAt,
		Amount:         quote.Total,
		DeliveryFee:    quote.DeliveryFee,
		PaymentMethod:  sub.PaymentMethod,
		PaymentStatus:  models.PaymentStatusPending,
		Status:         models.OrderStatusScheduled,
		CreatedAt:      now,
	}

	if sub.PaymentMethod != schedule.PaymentWallet {
		// Non-wallet methods are collected at the door.
		order.PaymentStatus = models.PaymentStatusCOD
	}

	if err := e.db.CreateDeliveryOrder(ctx, order); err != nil {
		e.logger.Printf("Error creating delivery order for subscription %s: %v", sub.ID, err)
		return &DeliveryResult{
			SubscriptionID: sub.ID,
			Success:        false,
			ErrorCode:      "ORDER_ERROR",
			ErrorMessage:   err.Error(),
		}
	}

	e.publishDelivery(events.DeliveryScheduled, order, "")

	result := &DeliveryResult{
		OrderID:        order.ID,
		SubscriptionID: sub.ID,
		Success:        true,
		PaymentStatus:  order.PaymentStatus,
	}

	if sub.PaymentMethod == schedule.PaymentWallet {
		charge := e.ChargeWallet(ctx, order)
		result.TransactionID = charge.TransactionID
		result.ErrorCode = charge.ErrorCode

		if charge.Success {
			order.PaymentStatus = models.PaymentStatusPaid
			order.TransactionID = charge.TransactionID
			e.publishDelivery(events.DeliveryCharged, order, "")
			e.logger.Printf("Charged order %s: transaction=%s", order.ID, charge.TransactionID)
		} else if ClassifyWalletError(charge.ErrorCode) == DeclineTypeSoft {
			order.PaymentStatus = models.PaymentStatusPending
			if _, err := e.db.CreateRetry(ctx, sub.ID, order.ID, charge.ErrorCode, charge.ErrorMessage, DeclineTypeSoft, e.retryPolicy); err != nil {
				e.logger.Printf("Error creating retry for order %s: %v", order.ID, err)
			} else {
				e.publishDelivery(events.DeliveryRetryQueued, order, charge.ErrorCode)
				e.logger.Printf("Charge failed for order %s (%s), retry in %v",
					order.ID, charge.ErrorCode, e.retryPolicy.GetRetryInterval(1))
			}
		} else {
			order.PaymentStatus = models.PaymentStatusPaymentDue
			e.publishDelivery(events.DeliveryPaymentDue, order, charge.ErrorCode)
			e.logger.Printf("Hard decline for order %s, payment due: %s", order.ID, charge.ErrorCode)
		}

		result.PaymentStatus = order.PaymentStatus
		if err := e.db.UpdateOrderPayment(ctx, order.ID, order.PaymentStatus, order.TransactionID); err != nil {
			e.logger.Printf("Error updating payment for order %s: %v", order.ID, err)
		}
	}

	next := schedule.NextDelivery(sub.Config(), now)
	if err := e.db.AdvanceNextDelivery(ctx, sub.ID, next); err != nil {
		e.logger.Printf("Error advancing subscription %s: %v", sub.ID, err)
		result.Success = false
		result.ErrorCode = "ADVANCE_ERROR"
		result.ErrorMessage = err.Error()
	}

	return result
}

// ExecuteBatch processes a batch of due subscriptions
func (e *Executor) ExecuteBatch(ctx context.Context, subscriptions []models.Subscription) *BatchResult {
	start := time.Now()
	result := &BatchResult{
		Deliveries: make([]*DeliveryResult, 0, len(subscriptions)),
	}

	for i := range subscriptions {
		result.add(e.ProcessSubscription(ctx, &subscriptions[i]))
	}

	result.Duration = time.Since(start)
	return result
}

func (e *Executor) publishDelivery(event string, order *models.DeliveryOrder, errorCode string) {
	if e.publisher == nil {
		return
	}
	e.publisher.PublishAsync(events.TypeDelivery, event, events.DeliveryEventData{
		OrderID:        order.ID,
		SubscriptionID: order.SubscriptionID,
		UserID:         order.UserID,
		Amount:         order.Amount,
		PaymentMethod:  order.PaymentMethod,
		PaymentStatus:  order.PaymentStatus,
		ScheduledFor:   order.ScheduledFor.Format(time.RFC3339),
		ErrorCode:      errorCode,
	})
}
