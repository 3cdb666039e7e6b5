// internal/models/models.go
package models

import (
	"time"

	"github.com/freshbasket/subscriptions/internal/schedule"
)

// Item is a subscription line with the unit price snapshotted from the
// catalog at creation time. Deliveries are charged from this snapshot,
// not from the live price.
type Item struct {
	ID             string `json:"id" db:"id"`
	SubscriptionID string `json:"subscription_id" db:"subscription_id"`
	ProductID      string `json:"product_id" db:"product_id"`
	ProductName    string `json:"product_name" db:"product_name"`
	UnitPrice      int64  `json:"unit_price" db:"unit_price"` // in paise
	Quantity       int    `json:"quantity" db:"quantity"`
}

// Subscription is the persisted recurring-delivery entity.
type Subscription struct {
	ID            string             `json:"id" db:"id"`
	UserID        string             `json:"user_id" db:"user_id"`
	Frequency     schedule.Frequency `json:"frequency" db:"frequency"`
	Slot          schedule.Slot      `json:"delivery_time"`
	DeliveryDays  []int              `json:"delivery_days,omitempty" db:"delivery_days"`
	DeliveryDate  int                `json:"delivery_date,omitempty" db:"delivery_date"`
	AddressID     string             `json:"delivery_address_id" db:"address_id"`
	PaymentMethod string             `json:"payment_method" db:"payment_method"`
	Notes         string             `json:"customer_notes,omitempty" db:"notes"`
	CouponCode    string             `json:"coupon_code,omitempty" db:"coupon_code"`
	TotalAmount   int64              `json:"total_amount" db:"total_amount"` // in paise
	Items         []Item             `json:"items,omitempty"`

	schedule.Lifecycle

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Config rebuilds the schedule configuration the scheduler operates on.
func (s *Subscription) Config() schedule.Config {
	items := make([]schedule.Item, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, schedule.Item{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return schedule.Config{
		Items:         items,
		Frequency:     s.Frequency,
		Slot:          s.Slot,
		DeliveryDays:  s.DeliveryDays,
		DeliveryDate:  s.DeliveryDate,
		AddressID:     s.AddressID,
		PaymentMethod: s.PaymentMethod,
		Notes:         s.Notes,
	}
}

// Delivery order status constants
const (
	OrderStatusScheduled = "scheduled"
	OrderStatusDelivered = "delivered"
)

// Delivery order payment status constants
const (
	PaymentStatusPaid       = "paid"
	PaymentStatusPending    = "pending"
	PaymentStatusPaymentDue = "payment_due"
	PaymentStatusCOD        = "cod"
)

// DeliveryOrder is one generated delivery for a subscription.
type DeliveryOrder struct {
	ID             string    `json:"id" db:"id"`
	SubscriptionID string    `json:"subscription_id" db:"subscription_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	ScheduledFor   time.Time `json:"scheduled_for" db:"scheduled_for"`
	Amount         int64     `json:"amount" db:"amount"` // in paise, fee included
	DeliveryFee    int64     `json:"delivery_fee" db:"delivery_fee"`
	PaymentMethod  string    `json:"payment_method" db:"payment_method"`
	PaymentStatus  string    `json:"payment_status" db:"payment_status"`
	TransactionID  string    `json:"transaction_id,omitempty" db:"transaction_id"`
	Status         string    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// APIResponse is the envelope every endpoint responds with.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
