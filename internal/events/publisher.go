package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Publisher sends events to the subscription service's event intake, which
// fans them out to connected admin dashboards.
type Publisher struct {
	serviceURL string
	httpClient *http.Client
}

// NewPublisher creates a new event publisher
func NewPublisher(serviceURL string) *Publisher {
	return &Publisher{
		serviceURL: serviceURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Event represents an event to publish
type Event struct {
	Type  string      `json:"type"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Publish sends an event to the subscription service
func (p *Publisher) Publish(ctx context.Context, eventType, eventName string, data interface{}) error {
	event := Event{
		Type:  eventType,
		Event: eventName,
		Data:  data,
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.serviceURL+"/internal/events", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event rejected with status: %d", resp.StatusCode)
	}

	return nil
}

// PublishAsync sends an event asynchronously (fire and forget)
func (p *Publisher) PublishAsync(eventType, eventName string, data interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Ignore errors for async publishing
		p.Publish(ctx, eventType, eventName, data)
	}()
}

// Event type constants
const (
	TypeSubscription = "subscription"
	TypeDelivery     = "delivery"
	TypeHealth       = "health"
)

// Subscription event constants
const (
	SubscriptionCreated   = "created"
	SubscriptionUpdated   = "updated"
	SubscriptionPaused    = "paused"
	SubscriptionResumed   = "resumed"
	SubscriptionCancelled = "cancelled"
)

// Delivery event constants
const (
	DeliveryScheduled  = "scheduled"
	DeliveryCharged    = "charged"
	DeliveryPaymentDue = "payment_due"
	DeliveryRetryQueued = "retry_queued"
)

// SubscriptionEventData represents subscription event payload
type SubscriptionEventData struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	Frequency      string `json:"frequency"`
	Status         string `json:"status"`
	TotalAmount    int64  `json:"total_amount"`
	NextDeliveryAt string `json:"next_delivery_at,omitempty"`
}

// DeliveryEventData represents delivery event payload
type DeliveryEventData struct {
	OrderID        string `json:"order_id"`
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	Amount         int64  `json:"amount"`
	PaymentMethod  string `json:"payment_method"`
	PaymentStatus  string `json:"payment_status"`
	ScheduledFor   string `json:"scheduled_for,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
}
