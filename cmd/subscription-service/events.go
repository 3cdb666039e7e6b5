// cmd/subscription-service/events.go
package main

import (
	"time"

	"github.com/freshbasket/subscriptions/internal/events"
	"github.com/freshbasket/subscriptions/internal/models"
	"github.com/freshbasket/subscriptions/internal/websocket"
)

// Broadcaster pushes subscription lifecycle events to the admin hub. All
// emits are best-effort; a full hub buffer drops the message rather than
// blocking a request.
type Broadcaster struct {
	hub *websocket.Hub
}

func NewBroadcaster(hub *websocket.Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

func (b *Broadcaster) emit(event string, sub *models.Subscription) {
	if b == nil || b.hub == nil {
		return
	}

	data := events.SubscriptionEventData{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Frequency:      string(sub.Frequency),
		Status:         string(sub.Status),
		TotalAmount:    sub.TotalAmount,
	}
	if !sub.NextDeliveryAt.IsZero() {
		data.NextDeliveryAt = sub.NextDeliveryAt.Format(time.RFC3339)
	}

	b.hub.BroadcastEvent(websocket.TypeSubscription, event, data)
}

// EmitSubscriptionCreated emits a subscription created event
func (b *Broadcaster) EmitSubscriptionCreated(sub *models.Subscription) {
	b.emit(websocket.EventSubscriptionCreated, sub)
}

// EmitSubscriptionUpdated emits a schedule change event
func (b *Broadcaster) EmitSubscriptionUpdated(sub *models.Subscription) {
	b.emit(websocket.EventSubscriptionUpdated, sub)
}

// EmitSubscriptionPaused emits a subscription paused event
func (b *Broadcaster) EmitSubscriptionPaused(sub *models.Subscription) {
	b.emit(websocket.EventSubscriptionPaused, sub)
}

// EmitSubscriptionResumed emits a subscription resumed event
func (b *Broadcaster) EmitSubscriptionResumed(sub *models.Subscription) {
	b.emit(websocket.EventSubscriptionResumed, sub)
}

// EmitSubscriptionCancelled emits a subscription cancelled event
func (b *Broadcaster) EmitSubscriptionCancelled(sub *models.Subscription) {
	b.emit(websocket.EventSubscriptionCancelled, sub)
}
