// cmd/subscription-service/handlers.go
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/freshbasket/subscriptions/internal/events"
	"github.com/freshbasket/subscriptions/internal/models"
	"github.com/freshbasket/subscriptions/internal/pricing"
	"github.com/freshbasket/subscriptions/internal/schedule"
	"github.com/freshbasket/subscriptions/internal/websocket"
)

// Store is the subscription persistence used by the handlers. *DB
// implements it; tests substitute an in-memory fake.
type Store interface {
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, userID, status string) ([]models.Subscription, error)
	UpdateSchedule(ctx context.Context, sub *models.Subscription) error
	UpdateLifecycle(ctx context.Context, sub *models.Subscription) error
	ListDeliveries(ctx context.Context, subscriptionID string) ([]models.DeliveryOrder, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store       Store
	catalog     ProductSource
	rules       *pricing.Rules
	broadcaster *Broadcaster
	hub         *websocket.Hub
	logger      *log.Logger
}

// NewHandler creates a new handler with dependencies
func NewHandler(store Store, catalog ProductSource, rules *pricing.Rules, hub *websocket.Hub, logger *log.Logger) *Handler {
	return &Handler{
		store:       store,
		catalog:     catalog,
		rules:       rules,
		broadcaster: NewBroadcaster(hub),
		hub:         hub,
		logger:      logger,
	}
}

// respondJSON sends an enveloped JSON response
func respondJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.APIResponse{
		Success: status < 400,
		Message: message,
		Data:    data,
	})
}

// respondError sends an error response in the same envelope
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, message, nil)
}

// respondDomainError maps typed scheduler/pricing errors onto HTTP codes.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch err.(type) {
	case schedule.ValidationError:
		respondError(w, http.StatusBadRequest, err.Error())
	case schedule.TransitionError:
		respondError(w, http.StatusConflict, err.Error())
	case pricing.CouponError:
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		if err == ErrSubscriptionNotFound {
			respondError(w, http.StatusNotFound, "Subscription not found")
			return
		}
		h.logger.Printf("Internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal error")
	}
}

// ============== Subscription Handlers ==============

// CreateSubscription handles POST /subscriptions
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := req.Config()
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := cfg.Validate(); err != nil {
		h.respondDomainError(w, err)
		return
	}

	now := time.Now()
	subID := "sub_" + uuid.New().String()

	// Snapshot item prices from the catalog. Deliveries charge from this
	// snapshot, not from the live price.
	items := make([]models.Item, 0, len(req.Items))
	lines := make([]pricing.LineItem, 0, len(req.Items))
	for _, reqItem := range req.Items {
		product, err := h.catalog.GetProduct(ctx, reqItem.ProductID)
		if err != nil {
			h.logger.Printf("Error fetching product %s: %v", reqItem.ProductID, err)
			respondError(w, http.StatusBadRequest, "Product "+reqItem.ProductID+" is not available")
			return
		}
		items = append(items, models.Item{
			ID:             "itm_" + uuid.New().String(),
			SubscriptionID: subID,
			ProductID:      product.ID,
			ProductName:    product.Name,
			UnitPrice:      product.Price,
			Quantity:       reqItem.Quantity,
		})
		lines = append(lines, pricing.LineItem{
			ProductID: product.ID,
			UnitPrice: product.Price,
			Quantity:  reqItem.Quantity,
		})
	}

	// Price once up front so a bad coupon fails the request instead of the
	// first delivery.
	quote, err := h.rules.Quote(lines, req.CouponCode, now)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	sub := &models.Subscription{
		ID:            subID,
		UserID:        req.UserID,
		Frequency:     cfg.Frequency,
		Slot:          cfg.Slot,
		DeliveryDays:  cfg.DeliveryDays,
		DeliveryDate:  cfg.DeliveryDate,
		AddressID:     cfg.AddressID,
		PaymentMethod: cfg.PaymentMethod,
		Notes:         cfg.Notes,
		CouponCode:    req.CouponCode,
		TotalAmount:   quote.Subtotal,
		Items:         items,
		Lifecycle:     schedule.NewLifecycle(cfg, now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.store.CreateSubscription(ctx, sub); err != nil {
		h.logger.Printf("Error creating subscription: %v (request: %+v)", err, req)
		respondError(w, http.StatusInternalServerError, "Failed to create subscription")
		return
	}

	h.broadcaster.EmitSubscriptionCreated(sub)
	h.logger.Printf("Created subscription %s for user %s (%s, next delivery %s)",
		sub.ID, sub.UserID, sub.Frequency, sub.NextDeliveryAt.Format(time.RFC3339))
	respondJSON(w, http.StatusCreated, "Subscription created successfully", sub)
}

// GetSubscription handles GET /subscriptions/{id}
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	sub, err := h.store.GetSubscription(ctx, id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, "OK", sub)
}

// ListSubscriptions handles GET /subscriptions
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("user_id")
	status := r.URL.Query().Get("status")

	subs, err := h.store.ListSubscriptions(ctx, userID, status)
	if err != nil {
		h.logger.Printf("Error listing subscriptions: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list subscriptions")
		return
	}

	respondJSON(w, http.StatusOK, "OK", SubscriptionListData{
		Subscriptions: subs,
		Total:         len(subs),
	})
}

// UpdateSchedule handles PUT /subscriptions/{id}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, err := h.store.GetSubscription(ctx, id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if sub.Status == schedule.StatusCancelled {
		h.respondDomainError(w, schedule.ErrAlreadyCancelled)
		return
	}

	if req.DeliveryTime != nil {
		sub.Slot = *req.DeliveryTime
	}
	if req.DeliveryDays != nil {
		sub.DeliveryDays = req.DeliveryDays
	}
	if req.DeliveryDate != nil {
		sub.DeliveryDate = *req.DeliveryDate
	}
	if req.Notes != nil {
		sub.Notes = *req.Notes
	}

	cfg := sub.Config()
	if err := cfg.Validate(); err != nil {
		h.respondDomainError(w, err)
		return
	}

	// Paused subscriptions keep their stale date; resume recomputes it.
	if sub.Status == schedule.StatusActive {
		sub.NextDeliveryAt = schedule.NextDelivery(cfg, time.Now())
	}

	if err := h.store.UpdateSchedule(ctx, sub); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.broadcaster.EmitSubscriptionUpdated(sub)
	h.logger.Printf("Updated schedule for subscription %s", id)
	respondJSON(w, http.StatusOK, "Subscription updated successfully", sub)
}

// ============== Lifecycle Handlers ==============

// PauseSubscription handles POST /subscriptions/{id}/pause
func (h *Handler) PauseSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	var req PauseRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	sub, err := h.store.GetSubscription(ctx, id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	if err := sub.Pause(req.Reason, req.ResumeDate); err != nil {
		h.respondDomainError(w, err)
		return
	}

	if err := h.store.UpdateLifecycle(ctx, sub); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.broadcaster.EmitSubscriptionPaused(sub)
	h.logger.Printf("Paused subscription %s", id)
	respondJSON(w, http.StatusOK, "Subscription paused", sub)
}

// ResumeSubscription handles POST /subscriptions/{id}/resume
func (h *Handler) ResumeSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	sub, err := h.store.GetSubscription(ctx, id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	if err := sub.Resume(sub.Config(), time.Now()); err != nil {
		h.respondDomainError(w, err)
		return
	}

	if err := h.store.UpdateLifecycle(ctx, sub); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.broadcaster.EmitSubscriptionResumed(sub)
	h.logger.Printf("Resumed subscription %s (next delivery %s)", id, sub.NextDeliveryAt.Format(time.RFC3339))
	respondJSON(w, http.StatusOK, "Subscription resumed", sub)
}

// CancelSubscription handles POST /subscriptions/{id}/cancel
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	var req CancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	sub, err := h.store.GetSubscription(ctx, id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	if err := sub.Cancel(req.Reason); err != nil {
		h.respondDomainError(w, err)
		return
	}

	if err := h.store.UpdateLifecycle(ctx, sub); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.broadcaster.EmitSubscriptionCancelled(sub)
	h.logger.Printf("Cancelled subscription %s", id)
	respondJSON(w, http.StatusOK, "Subscription cancelled", sub)
}

// ============== Delivery Handlers ==============

// ListDeliveries handles GET /subscriptions/{id}/deliveries
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	// 404 on unknown subscriptions rather than an empty list.
	if _, err := h.store.GetSubscription(ctx, id); err != nil {
		h.respondDomainError(w, err)
		return
	}

	orders, err := h.store.ListDeliveries(ctx, id)
	if err != nil {
		h.logger.Printf("Error listing deliveries: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list deliveries")
		return
	}

	respondJSON(w, http.StatusOK, "OK", DeliveryListData{
		Deliveries: orders,
		Total:      len(orders),
	})
}

// ============== Internal Handlers ==============

// IntakeEvent handles POST /internal/events: the delivery worker posts
// events here and the hub fans them out to admin dashboards.
func (h *Handler) IntakeEvent(w http.ResponseWriter, r *http.Request) {
	var event events.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid event body")
		return
	}
	if event.Type == "" || event.Event == "" {
		respondError(w, http.StatusBadRequest, "Event type and name are required")
		return
	}

	h.hub.BroadcastEvent(event.Type, event.Event, event.Data)
	respondJSON(w, http.StatusOK, "Event accepted", nil)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, "OK", map[string]interface{}{
		"service":    "subscription-service",
		"ws_clients": h.hub.ClientCount(),
		"time":       time.Now().UTC(),
	})
}
