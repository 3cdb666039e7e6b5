// cmd/subscription-service/database.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/freshbasket/subscriptions/internal/database"
	"github.com/freshbasket/subscriptions/internal/models"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

// DB wraps the shared connection with subscription queries
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

// EnsureSchema creates the subscription tables if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			status           TEXT NOT NULL,
			frequency        TEXT NOT NULL,
			slot_hour        INT NOT NULL,
			slot_minute      INT NOT NULL,
			delivery_days    INT[] NOT NULL DEFAULT '{}',
			delivery_date    INT NOT NULL DEFAULT 0,
			address_id       TEXT NOT NULL,
			payment_method   TEXT NOT NULL,
			notes            TEXT NOT NULL DEFAULT '',
			coupon_code      TEXT NOT NULL DEFAULT '',
			total_amount     BIGINT NOT NULL DEFAULT 0,
			next_delivery_at TIMESTAMPTZ NOT NULL,
			paused_until     TIMESTAMPTZ,
			pause_reason     TEXT NOT NULL DEFAULT '',
			cancel_reason    TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_due
			ON subscriptions (next_delivery_at) WHERE status = 'active'`,
		`CREATE TABLE IF NOT EXISTS subscription_items (
			id              TEXT PRIMARY KEY,
			subscription_id TEXT NOT NULL REFERENCES subscriptions(id),
			product_id      TEXT NOT NULL,
			product_name    TEXT NOT NULL DEFAULT '',
			unit_price      BIGINT NOT NULL,
			quantity        INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS delivery_orders (
			id              TEXT PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			user_id         TEXT NOT NULL,
			scheduled_for   TIMESTAMPTZ NOT NULL,
			amount          BIGINT NOT NULL,
			delivery_fee    BIGINT NOT NULL DEFAULT 0,
			payment_method  TEXT NOT NULL,
			payment_status  TEXT NOT NULL,
			transaction_id  TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
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

func daysArray(days []int) pq.Int64Array {
	arr := make(pq.Int64Array, 0, len(days))
	for _, d := range days {
		arr = append(arr, int64(d))
	}
	return arr
}

// CreateSubscription inserts a subscription and its item snapshot in one
// transaction.
func (db *DB) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	tx, err := db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, status, frequency, slot_hour, slot_minute,
			delivery_days, delivery_date, address_id, payment_method, notes, coupon_code,
			total_amount, next_delivery_at, paused_until, pause_reason, cancel_reason,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		sub.ID, sub.UserID, sub.Status, sub.Frequency, sub.Slot.Hour, sub.Slot.Minute,
		daysArray(sub.DeliveryDays), sub.DeliveryDate, sub.AddressID, sub.PaymentMethod,
		sub.Notes, sub.CouponCode, sub.TotalAmount, sub.NextDeliveryAt, sub.PausedUntil,
		sub.PauseReason, sub.CancelReason, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}

	for _, item := range sub.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO subscription_items (id, subscription_id, product_id, product_name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			item.ID, sub.ID, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("failed to insert subscription item: %w", err)
		}
	}

	return tx.Commit()
}

// GetSubscription retrieves a subscription with its items
func (db *DB) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	row := db.Conn.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriptionNotFound
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

// ListSubscriptions retrieves subscriptions, optionally filtered by user
// and status.
func (db *DB) ListSubscriptions(ctx context.Context, userID, status string) ([]models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE 1=1`
	args := []interface{}{}

	if userID != "" {
		args = append(args, userID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
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
	return subs, rows.Err()
}

// UpdateSchedule persists schedule field changes and the recomputed next
// delivery.
func (db *DB) UpdateSchedule(ctx context.Context, sub *models.Subscription) error {
	result, err := db.Conn.ExecContext(ctx, `
		UPDATE subscriptions
		SET slot_hour = $2, slot_minute = $3, delivery_days = $4, delivery_date = $5,
			notes = $6, next_delivery_at = $7, updated_at = now()
		WHERE id = $1`,
		sub.ID, sub.Slot.Hour, sub.Slot.Minute, daysArray(sub.DeliveryDays),
		sub.DeliveryDate, sub.Notes, sub.NextDeliveryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return checkFound(result)
}

// UpdateLifecycle persists a state transition.
func (db *DB) UpdateLifecycle(ctx context.Context, sub *models.Subscription) error {
	result, err := db.Conn.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = $2, next_delivery_at = $3, paused_until = $4,
			pause_reason = $5, cancel_reason = $6, updated_at = now()
		WHERE id = $1`,
		sub.ID, sub.Status, sub.NextDeliveryAt, sub.PausedUntil,
		sub.PauseReason, sub.CancelReason,
	)
	if err != nil {
		return fmt.Errorf("failed to update lifecycle: %w", err)
	}
	return checkFound(result)
}

// ListDeliveries returns the delivery order history of a subscription.
func (db *DB) ListDeliveries(ctx context.Context, subscriptionID string) ([]models.DeliveryOrder, error) {
	rows, err := db.Conn.QueryContext(ctx, `
		SELECT id, subscription_id, user_id, scheduled_for, amount, delivery_fee,
			payment_method, payment_status, transaction_id, status, created_at
		FROM delivery_orders WHERE subscription_id = $1
		ORDER BY scheduled_for DESC`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var orders []models.DeliveryOrder
	for rows.Next() {
		var o models.DeliveryOrder
		if err := rows.Scan(&o.ID, &o.SubscriptionID, &o.UserID, &o.ScheduledFor,
			&o.Amount, &o.DeliveryFee, &o.PaymentMethod, &o.PaymentStatus,
			&o.TransactionID, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func checkFound(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
