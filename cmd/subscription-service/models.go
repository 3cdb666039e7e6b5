// cmd/subscription-service/models.go
package main

import (
	"time"

	"github.com/freshbasket/subscriptions/internal/models"
	"github.com/freshbasket/subscriptions/internal/schedule"
)

// CreateSubscriptionRequest is the body of POST /subscriptions.
type CreateSubscriptionRequest struct {
	UserID        string          `json:"user_id"`
	Items         []schedule.Item `json:"items"`
	Frequency     string          `json:"frequency"`
	DeliveryTime  *schedule.Slot  `json:"delivery_time"`
	DeliveryDays  []int           `json:"delivery_days,omitempty"`
	DeliveryDate  int             `json:"delivery_date,omitempty"`
	AddressID     string          `json:"delivery_address_id"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"customer_notes,omitempty"`
	CouponCode    string          `json:"coupon_code,omitempty"`
	StartDate     *time.Time      `json:"start_date,omitempty"`
}

var ErrMissingUserID = schedule.ValidationError{Field: "user_id", Message: "user_id is required"}

// Config maps the request onto a schedule configuration. A missing
// delivery_time object surfaces as the scheduler's own time error so the
// caller sees one consistent message for that field.
func (r *CreateSubscriptionRequest) Config() (schedule.Config, error) {
	if r.UserID == "" {
		return schedule.Config{}, ErrMissingUserID
	}

	slot := schedule.Slot{Hour: -1, Minute: -1}
	if r.DeliveryTime != nil {
		slot = *r.DeliveryTime
	}

	return schedule.Config{
		Items:         r.Items,
		Frequency:     schedule.Frequency(r.Frequency),
		Slot:          slot,
		DeliveryDays:  r.DeliveryDays,
		DeliveryDate:  r.DeliveryDate,
		AddressID:     r.AddressID,
		PaymentMethod: r.PaymentMethod,
		Notes:         r.Notes,
		StartDate:     r.StartDate,
	}, nil
}

// UpdateScheduleRequest is the body of PUT /subscriptions/{id}. Nil fields
// are left unchanged.
type UpdateScheduleRequest struct {
	DeliveryTime *schedule.Slot `json:"delivery_time,omitempty"`
	DeliveryDays []int          `json:"delivery_days,omitempty"`
	DeliveryDate *int           `json:"delivery_date,omitempty"`
	Notes        *string        `json:"customer_notes,omitempty"`
}

// PauseRequest is the body of POST /subscriptions/{id}/pause.
type PauseRequest struct {
	Reason     string     `json:"reason,omitempty"`
	ResumeDate *time.Time `json:"resume_date,omitempty"`
}

// CancelRequest is the body of POST /subscriptions/{id}/cancel.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SubscriptionListData wraps subscription lists in the response envelope.
type SubscriptionListData struct {
	Subscriptions []models.Subscription `json:"subscriptions"`
	Total         int                   `json:"total"`
}

// DeliveryListData wraps delivery order lists in the response envelope.
type DeliveryListData struct {
	Deliveries []models.DeliveryOrder `json:"deliveries"`
	Total      int                    `json:"total"`
}
