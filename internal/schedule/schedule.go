// Package schedule implements the recurring-delivery engine: configuration
// validation, next-delivery computation and the subscription lifecycle
// state machine. Everything in this package is pure computation so the
// same rules can back both the API handlers and the delivery worker.
package schedule

import (
	"time"
)

// Frequency is the recurrence pattern of a subscription.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Payment method constants
const (
	PaymentWallet = "wallet"
	PaymentCOD    = "cod"
	PaymentCard   = "card"
	PaymentUPI    = "upi"
)

// Slot is the time of day a delivery is scheduled for.
type Slot struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Item is a product line in a subscription.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Config is the schedule configuration of a subscription. DeliveryDays is
// only meaningful for weekly subscriptions and DeliveryDate only for
// monthly ones; the inactive field is ignored, never rejected.
type Config struct {
	Items         []Item     `json:"items"`
	Frequency     Frequency  `json:"frequency"`
	Slot          Slot       `json:"delivery_time"`
	DeliveryDays  []int      `json:"delivery_days,omitempty"`
	DeliveryDate  int        `json:"delivery_date,omitempty"`
	AddressID     string     `json:"delivery_address_id"`
	PaymentMethod string     `json:"payment_method"`
	Notes         string     `json:"customer_notes,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
}

// ValidationError describes a single violated configuration rule
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

var (
	ErrEmptyItems           = ValidationError{Field: "items", Message: "at least one item is required"}
	ErrInvalidQuantity      = ValidationError{Field: "items", Message: "item quantity must be greater than zero"}
	ErrInvalidFrequency     = ValidationError{Field: "frequency", Message: "frequency must be one of daily, weekly, monthly"}
	ErrMissingAddress       = ValidationError{Field: "delivery_address_id", Message: "delivery address is required"}
	ErrInvalidTime          = ValidationError{Field: "delivery_time", Message: "delivery time must be between 00:00 and 23:59"}
	ErrMissingDeliveryDays  = ValidationError{Field: "delivery_days", Message: "weekly subscriptions need at least one delivery day between 0 (Sunday) and 6 (Saturday)"}
	ErrInvalidDeliveryDate  = ValidationError{Field: "delivery_date", Message: "monthly subscriptions need a delivery date between 1 and 31"}
	ErrInvalidPaymentMethod = ValidationError{Field: "payment_method", Message: "payment method must be one of wallet, cod, card, upi"}
)

// Validate checks the configuration rules in a fixed order and returns the
// first violation. The same checks run in the UI before submission and on
// the server, so the order is part of the contract.
func (c Config) Validate() error {
	if len(c.Items) == 0 {
		return ErrEmptyItems
	}
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}

	switch c.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return ErrInvalidFrequency
	}

	if c.AddressID == "" {
		return ErrMissingAddress
	}

	if c.Slot.Hour < 0 || c.Slot.Hour > 23 || c.Slot.Minute < 0 || c.Slot.Minute > 59 {
		return ErrInvalidTime
	}

	if c.Frequency == FrequencyWeekly {
		if len(c.DeliveryDays) == 0 {
			return ErrMissingDeliveryDays
		}
		for _, day := range c.DeliveryDays {
			if day < 0 || day > 6 {
				return ErrMissingDeliveryDays
			}
		}
	}

	if c.Frequency == FrequencyMonthly {
		if c.DeliveryDate < 1 || c.DeliveryDate > 31 {
			return ErrInvalidDeliveryDate
		}
	}

	switch c.PaymentMethod {
	case PaymentWallet, PaymentCOD, PaymentCard, PaymentUPI:
	default:
		return ErrInvalidPaymentMethod
	}

	return nil
}
