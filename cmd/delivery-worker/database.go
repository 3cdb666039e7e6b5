// cmd/delivery-worker/database.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/freshbasket/subscriptions/internal/database"
	"github.com/freshbasket/subscriptions/internal/models"
)

// DB wraps the shared connection with worker queries
type DB struct {
	*database.DB
}

// NewDB creates a new database connection
func NewDB(connectionString string) (*DB, error) {
	inner, err := database.Connect(connectionString)
	if err != nil {
		return nil, err
	}
	return &DB{DB: inner}, nil
}

// RetryEntry represents an entry in the charge retry queue
type RetryEntry struct {
	ID               string     `json:"id"`
	SubscriptionID   string     `json:"subscription_id"`
	OrderID          string     `json:"order_id"`
	Attempt          int        `json:"attempt"`
	MaxAttempts      int        `json:"max_attempts"`
	Status           string     `json:"status"`
	LastErrorCode    string     `json:"last_error_code,omitempty"`
	LastErrorMessage string     `json:"last_error_message,omitempty"`
	DeclineType      string     `json:"decline_type,omitempty"`
	NextRetryAt      time.Time  `json:"next_retry_at"`
	LastAttemptAt    *time.Time `json:"last_attempt_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

// Retry entry status constants
const (
	RetryStatusPending    = "pending"
	RetryStatusProcessing = "processing"
	RetryStatusSucceeded  = "succeeded"
	RetryStatusFailed     = "failed"
	RetryStatusExhausted  = "exhausted"
)

// EnsureSchema creates the charge retry table if it does not exist yet.
// The subscription tables are owned by the subscription service; the
// worker only reads them.
func (db *DB) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS charge_retries (
			id                 TEXT PRIMARY KEY,
			subscription_id    TEXT NOT NULL,
			order_id           TEXT NOT NULL,
			attempt            INT NOT NULL DEFAULT 1,
			max_attempts       INT NOT NULL DEFAULT 3,
			status             TEXT NOT NULL DEFAULT 'pending',
			last_error_code    TEXT NOT NULL DEFAULT '',
			last_error_message TEXT NOT NULL DEFAULT '',
			decline_type       TEXT NOT NULL DEFAULT '',
			next_retry_at      TIMESTAMPTZ NOT NULL,
			last_attempt_at    TIMESTAMPTZ,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			resolved_at        TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_charge_retries_due
			ON charge_retries (next_retry_at) WHERE status = 'pending';
		CREATE INDEX IF NOT EXISTS idx_charge_retries_subscription
			ON charge_retries (subscription_id);
	`

	if _, err := db.Conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create charge_retries table: %w", err)
	}
	return nil
}

const subscriptionColumns = `id, user_id, status, frequency, slot_hour, slot_minute,
	delivery_days, delivery_date, address_id, payment_method, notes, coupon_code,
	total_amount, next_delivery_at, paused_until, pause_reason, cancel_reason,
	created_at, updated_at`

func scanSubscription(row interface{ Scan(...interface{}) error }) (*models.Subscription, error) {
	var s models.Subscription
	var days pq.Int64Array

	err := row.Scan(
		&s.ID, &s.UserID, &s.Status, &s.Frequency, &s.Slot.Hour, &s.Slot.Minute,
		&days, &s.DeliveryDate, &s.AddressID, &s.PaymentMethod, &s.Notes, &s.CouponCode,
		&s.TotalAmount, &s.NextDeliveryAt, &s.PausedUntil, &s.PauseReason, &s.CancelReason,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.DeliveryDays = make([]int, 0, len(days))
	for _, d := range days {
		s.DeliveryDays = append(s.DeliveryDays, int(d))
	}
	return &s, nil
}

// GetSubscriptionsDue retrieves active subscriptions whose next delivery
// time has passed, items included.
func (db *DB) GetSubscriptionsDue(ctx context.Context, limit int) ([]models.Subscription, error) {
	rows, err := db.Conn.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE status = 'active' AND next_delivery_at <= NOW()
		ORDER BY next_delivery_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range subs {
		items, err := db.listItems(ctx, subs[i].ID)
		if err != nil {
			return nil, err
		}
		subs[i].Items = items
	}
	return subs, nil
}

// GetSubscription retrieves one subscription with its items.
func (db *DB) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	row := db.Conn.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subscription %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	items, err := db.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	sub.Items = items
	return sub, nil
}

func (db *DB) listItems(ctx context.Context, subscriptionID string) ([]models.Item, error) {
	rows, err := db.Conn.QueryContext(ctx, `
		SELECT id, subscription_id, product_id, product_name, unit_price, quantity
		FROM subscription_items WHERE subscription_id = $1 ORDER BY id`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.SubscriptionID, &item.ProductID,
			&item.ProductName, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateDeliveryOrder inserts a generated delivery order.
func (db *DB) CreateDeliveryOrder(ctx context.Context, order *models.DeliveryOrder) error {
	_, err := db.Conn.ExecContext(ctx, `
		INSERT INTO delivery_orders (id, subscription_id, user_id, scheduled_for,
			amount, delivery_fee, payment_method, payment_status, transaction_id,
			status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		order.ID, order.SubscriptionID, order.UserID, order.ScheduledFor,
		order.Amount, order.DeliveryFee, order.PaymentMethod, order.PaymentStatus,
		order.TransactionID, order.Status, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery order: %w", err)
	}
	return nil
}

// GetDeliveryOrder retrieves a delivery order by ID.
func (db *DB) GetDeliveryOrder(ctx context.Context, id string) (*models.DeliveryOrder, error) {
	var o models.DeliveryOrder
	err := db.Conn.QueryRowContext(ctx, `
		SELECT id, subscription_id, user_id, scheduled_for, amount, delivery_fee,
			payment_method, payment_status, transaction_id, status, created_at
		FROM delivery_orders WHERE id = $1`, id).Scan(
		&o.ID, &o.SubscriptionID, &o.UserID, &o.ScheduledFor, &o.Amount, &o.DeliveryFee,
		&o.PaymentMethod, &o.PaymentStatus, &o.TransactionID, &o.Status, &o.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("delivery order %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery order: %w", err)
	}
	return &o, nil
}

// UpdateOrderPayment updates the payment outcome of a delivery order.
func (db *DB) UpdateOrderPayment(ctx context.Context, orderID, paymentStatus, transactionID string) error {
	_, err := db.Conn.ExecContext(ctx, `
		UPDATE delivery_orders SET payment_status = $2, transaction_id = $3
		WHERE id = $1`,
		orderID, paymentStatus, transactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order payment: %w", err)
	}
	return nil
}

// AdvanceNextDelivery moves a subscription's next delivery forward. The
// status guard keeps a pause or cancel that raced the batch from being
// reactivated.
func (db *DB) AdvanceNextDelivery(ctx context.Context, subscriptionID string, next time.Time) error {
	_, err := db.Conn.ExecContext(ctx, `
		UPDATE subscriptions SET next_delivery_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'active'`,
		subscriptionID, next,
	)
	if err != nil {
		return fmt.Errorf("failed to advance next delivery: %w", err)
	}
	return nil
}

// CreateRetry creates a new charge retry entry
func (db *DB) CreateRetry(ctx context.Context, subscriptionID, orderID, errorCode, errorMessage string, declineType DeclineType, policy *RetryPolicy) (*RetryEntry, error) {
	now := time.Now()
	entry := &RetryEntry{
		ID:               "ret_" + uuid.New().String(),
		SubscriptionID:   subscriptionID,
		OrderID:          orderID,
		Attempt:          1,
		MaxAttempts:      policy.MaxAttempts,
		Status:           RetryStatusPending,
		LastErrorCode:    errorCode,
		LastErrorMessage: errorMessage,
		DeclineType:      string(declineType),
		NextRetryAt:      policy.CalculateNextRetry(1),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	_, err := db.Conn.ExecContext(ctx, `
		INSERT INTO charge_retries (id, subscription_id, order_id, attempt, max_attempts,
			status, last_error_code, last_error_message, decline_type, next_retry_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.SubscriptionID, entry.OrderID, entry.Attempt, entry.MaxAttempts,
		entry.Status, entry.LastErrorCode, entry.LastErrorMessage, entry.DeclineType,
		entry.NextRetryAt, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry entry: %w", err)
	}
	return entry, nil
}

const retryColumns = `id, subscription_id, order_id, attempt, max_attempts, status,
	last_error_code, last_error_message, decline_type, next_retry_at, last_attempt_at,
	created_at, updated_at, resolved_at`

func scanRetry(row interface{ Scan(...interface{}) error }) (*RetryEntry, error) {
	var entry RetryEntry
	err := row.Scan(
		&entry.ID, &entry.SubscriptionID, &entry.OrderID, &entry.Attempt, &entry.MaxAttempts,
		&entry.Status, &entry.LastErrorCode, &entry.LastErrorMessage, &entry.DeclineType,
		&entry.NextRetryAt, &entry.LastAttemptAt,
		&entry.CreatedAt, &entry.UpdatedAt, &entry.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetRetryEntry retrieves a retry entry by ID
func (db *DB) GetRetryEntry(ctx context.Context, id string) (*RetryEntry, error) {
	row := db.Conn.QueryRowContext(ctx,
		`SELECT `+retryColumns+` FROM charge_retries WHERE id = $1`, id)

	entry, err := scanRetry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("retry entry not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get retry entry: %w", err)
	}
	return entry, nil
}

// GetDueRetries retrieves retry entries that are due for processing
func (db *DB) GetDueRetries(ctx context.Context, limit int) ([]RetryEntry, error) {
	rows, err := db.Conn.QueryContext(ctx, `
		SELECT `+retryColumns+`
		FROM charge_retries
		WHERE status = 'pending' AND next_retry_at <= NOW()
		ORDER BY next_retry_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due retries: %w", err)
	}
	defer rows.Close()

	var entries []RetryEntry
	for rows.Next() {
		entry, err := scanRetry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan retry entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// ListRetries retrieves retry entries, optionally filtered by status
func (db *DB) ListRetries(ctx context.Context, status string, limit int) ([]RetryEntry, error) {
	query := `SELECT ` + retryColumns + ` FROM charge_retries`
	args := []interface{}{}

	if status != "" {
		args = append(args, status)
		query += " WHERE status = $1"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY next_retry_at ASC LIMIT $%d", len(args))

	rows, err := db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list retries: %w", err)
	}
	defer rows.Close()

	var entries []RetryEntry
	for rows.Next() {
		entry, err := scanRetry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan retry entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// CountPendingRetries returns the size of the pending retry queue.
func (db *DB) CountPendingRetries(ctx context.Context) (int, error) {
	var count int
	err := db.Conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM charge_retries WHERE status = 'pending'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending retries: %w", err)
	}
	return count, nil
}

// UpdateRetryStatus updates a retry entry status
func (db *DB) UpdateRetryStatus(ctx context.Context, id, status string) error {
	now := time.Now()

	var query string
	var args []interface{}

	switch status {
	case RetryStatusSucceeded, RetryStatusFailed, RetryStatusExhausted:
		query = `UPDATE charge_retries SET status = $1, updated_at = $2, resolved_at = $3 WHERE id = $4`
		args = []interface{}{status, now, now, id}
	default:
		query = `UPDATE charge_retries SET status = $1, updated_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	}

	if _, err := db.Conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update retry status: %w", err)
	}
	return nil
}

// UpdateRetryAfterAttempt records the outcome of one retry attempt:
// success resolves the entry, a hard decline or an exhausted attempt
// budget fails it, a soft decline schedules the next attempt.
func (db *DB) UpdateRetryAfterAttempt(ctx context.Context, entry *RetryEntry, result *ChargeResult, policy *RetryPolicy) (string, error) {
	now := time.Now()

	if result.Success {
		_, err := db.Conn.ExecContext(ctx, `
			UPDATE charge_retries SET
				status = $1, last_attempt_at = $2, updated_at = $3, resolved_at = $4
			WHERE id = $5`,
			RetryStatusSucceeded, now, now, now, entry.ID,
		)
		if err != nil {
			return "", fmt.Errorf("failed to resolve retry: %w", err)
		}
		return RetryStatusSucceeded, nil
	}

	newAttempt := entry.Attempt + 1
	declineType := ClassifyWalletError(result.ErrorCode)

	status := RetryStatusPending
	if newAttempt > entry.MaxAttempts {
		status = RetryStatusExhausted
	} else if declineType == DeclineTypeHard {
		status = RetryStatusFailed
	}

	if status == RetryStatusPending {
		_, err := db.Conn.ExecContext(ctx, `
			UPDATE charge_retries SET
				status = $1, attempt = $2, last_attempt_at = $3,
				last_error_code = $4, last_error_message = $5, decline_type = $6,
				next_retry_at = $7, updated_at = $8
			WHERE id = $9`,
			status, newAttempt, now,
			result.ErrorCode, result.ErrorMessage, string(declineType),
			policy.CalculateNextRetry(newAttempt), now, entry.ID,
		)
		if err != nil {
			return "", fmt.Errorf("failed to schedule retry: %w", err)
		}
		return status, nil
	}

	_, err := db.Conn.ExecContext(ctx, `
		UPDATE charge_retries SET
			status = $1, attempt = $2, last_attempt_at = $3,
			last_error_code = $4, last_error_message = $5, decline_type = $6,
			updated_at = $7, resolved_at = $8
		WHERE id = $9`,
		status, newAttempt, now,
		result.ErrorCode, result.ErrorMessage, string(declineType),
		now, now, entry.ID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to close retry: %w", err)
	}
	return status, nil
}
