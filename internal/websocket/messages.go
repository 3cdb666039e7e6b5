package websocket

import (
	"encoding/json"
	"time"
)

// Message types for WebSocket events
const (
	TypeSubscription = "subscription"
	TypeDelivery     = "delivery"
	TypeHealth       = "health"
	TypeHeartbeat    = "heartbeat"
)

// Subscription events
const (
	EventSubscriptionCreated   = "created"
	EventSubscriptionUpdated   = "updated"
	EventSubscriptionPaused    = "paused"
	EventSubscriptionResumed   = "resumed"
	EventSubscriptionCancelled = "cancelled"
)

// Delivery events
const (
	EventDeliveryScheduled   = "scheduled"
	EventDeliveryCharged     = "charged"
	EventDeliveryPaymentDue  = "payment_due"
	EventDeliveryRetryQueued = "retry_queued"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType, event string, data interface{}) *Message {
	return &Message{
		Type:      msgType,
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the message to JSON bytes
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// HeartbeatData represents heartbeat data
type HeartbeatData struct {
	ServerTime  time.Time `json:"server_time"`
	ClientCount int       `json:"client_count"`
}
