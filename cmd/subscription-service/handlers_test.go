package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshbasket/subscriptions/internal/models"
	"github.com/freshbasket/subscriptions/internal/pricing"
	"github.com/freshbasket/subscriptions/internal/schedule"
	"github.com/freshbasket/subscriptions/internal/websocket"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	subs       map[string]models.Subscription
	deliveries map[string][]models.DeliveryOrder
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:       make(map[string]models.Subscription),
		deliveries: make(map[string][]models.DeliveryOrder),
	}
}

func (f *fakeStore) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	f.subs[sub.ID] = *sub
	return nil
}

func (f *fakeStore) GetSubscription(_ context.Context, id string) (*models.Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	copied := sub
	return &copied, nil
}

func (f *fakeStore) ListSubscriptions(_ context.Context, userID, status string) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range f.subs {
		if userID != "" && sub.UserID != userID {
			continue
		}
		if status != "" && string(sub.Status) != status {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (f *fakeStore) UpdateSchedule(_ context.Context, sub *models.Subscription) error {
	if _, ok := f.subs[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	f.subs[sub.ID] = *sub
	return nil
}

func (f *fakeStore) UpdateLifecycle(_ context.Context, sub *models.Subscription) error {
	return f.UpdateSchedule(nil, sub)
}

func (f *fakeStore) ListDeliveries(_ context.Context, id string) ([]models.DeliveryOrder, error) {
	return f.deliveries[id], nil
}

// fakeCatalog serves fixed products.
type fakeCatalog struct {
	products map[string]Product
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (*Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s not found", id)
	}
	return &p, nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[string]Product{
		"prod_milk":  {ID: "prod_milk", Name: "Milk 1L", Price: 6000, InStock: true},
		"prod_bread": {ID: "prod_bread", Name: "Bread", Price: 4500, InStock: true},
	}}
}

func testRouter(store Store, catalog ProductSource) *mux.Router {
	logger := log.New(io.Discard, "", 0)
	hub := websocket.NewHub(logger)
	handler := NewHandler(store, catalog, pricing.DefaultRules(), hub, logger)

	r := mux.NewRouter()
	r.HandleFunc("/subscriptions", handler.CreateSubscription).Methods("POST")
	r.HandleFunc("/subscriptions", handler.ListSubscriptions).Methods("GET")
	r.HandleFunc("/subscriptions/{id}", handler.GetSubscription).Methods("GET")
	r.HandleFunc("/subscriptions/{id}", handler.UpdateSchedule).Methods("PUT")
	r.HandleFunc("/subscriptions/{id}/pause", handler.PauseSubscription).Methods("POST")
	r.HandleFunc("/subscriptions/{id}/resume", handler.ResumeSubscription).Methods("POST")
	r.HandleFunc("/subscriptions/{id}/cancel", handler.CancelSubscription).Methods("POST")
	r.HandleFunc("/subscriptions/{id}/deliveries", handler.ListDeliveries).Methods("GET")
	r.HandleFunc("/internal/events", handler.IntakeEvent).Methods("POST")
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, router *mux.Router, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func createBody() map[string]interface{} {
	return map[string]interface{}{
		"user_id":             "user_1",
		"items":               []map[string]interface{}{{"product_id": "prod_milk", "quantity": 2}},
		"frequency":           "weekly",
		"delivery_time":       map[string]int{"hour": 8, "minute": 0},
		"delivery_days":       []int{1, 3, 5},
		"delivery_address_id": "addr_1",
		"payment_method":      "wallet",
	}
}

func TestCreateSubscription(t *testing.T) {
	router := testRouter(newFakeStore(), testCatalog())

	code, env := doRequest(t, router, "POST", "/subscriptions", createBody())
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)

	var sub models.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	assert.Contains(t, sub.ID, "sub_")
	assert.Equal(t, schedule.StatusActive, sub.Status)
	assert.Equal(t, int64(12000), sub.TotalAmount) // 2 x 6000 snapshot
	require.Len(t, sub.Items, 1)
	assert.Equal(t, "Milk 1L", sub.Items[0].ProductName)
	assert.True(t, sub.NextDeliveryAt.After(time.Now()))
}

func TestCreateSubscriptionWeekdayInSet(t *testing.T) {
	router := testRouter(newFakeStore(), testCatalog())

	code, env := doRequest(t, router, "POST", "/subscriptions", createBody())
	require.Equal(t, http.StatusCreated, code)

	var sub models.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	assert.Contains(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, sub.NextDeliveryAt.Weekday())
	assert.Equal(t, 8, sub.NextDeliveryAt.Hour())
	assert.Equal(t, 0, sub.NextDeliveryAt.Minute())
}

func TestCreateSubscriptionValidationErrors(t *testing.T) {
	router := testRouter(newFakeStore(), testCatalog())

	tests := []struct {
		name    string
		mutate  func(map[string]interface{})
		message string
	}{
		{"missing user", func(b map[string]interface{}) { delete(b, "user_id") }, "user_id"},
		{"no items", func(b map[string]interface{}) { b["items"] = []interface{}{} }, "item"},
		{"bad frequency", func(b map[string]interface{}) { b["frequency"] = "hourly" }, "frequency"},
		{"missing address", func(b map[string]interface{}) { delete(b, "delivery_address_id") }, "address"},
		{"missing time", func(b map[string]interface{}) { delete(b, "delivery_time") }, "delivery time"},
		{"no delivery days", func(b map[string]interface{}) { b["delivery_days"] = []int{} }, "delivery day"},
		{"bad payment", func(b map[string]interface{}) { b["payment_method"] = "cheque" }, "payment method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := createBody()
			tt.mutate(body)
			code, env := doRequest(t, router, "POST", "/subscriptions", body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.False(t, env.Success)
			assert.Contains(t, env.Message, tt.message)
		})
	}
}

func TestCreateSubscriptionMonthlyRules(t *testing.T) {
	router := testRouter(newFakeStore(), testCatalog())

	body := createBody()
	body["frequency"] = "monthly"
	delete(body, "delivery_days")

	// No delivery_date at all.
	code, env := doRequest(t, router, "POST", "/subscriptions", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "delivery date")

	// Out of range.
	body["delivery_date"] = 32
	code, _ = doRequest(t, router, "POST", "/subscriptions", body)
	assert.Equal(t, http.StatusBadRequest, code)

	// Valid.
	body["delivery_date"] = 15
	code, env = doRequest(t, router, "POST", "/subscriptions", body)
	require.Equal(t, http.StatusCreated, code)

	var sub models.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	assert.Equal(t, 15, sub.NextDeliveryAt.Day())
}

func TestCreateSubscriptionUnknownProduct(t *testing.T) {
	router := testRouter(newFakeStore(), testCatalog())

	body := createBody()
	body["items"] = []map[string]interface{}{{"product_id": "prod_unobtainium", "quantity": 1}}

	code, env := doRequest(t, router, "POST", "/subscriptions", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "prod_unobtainium")
}

func TestCreateSubscriptionBadCoupon(t *testing.T) {
	router := testRouter(newFakeStore(), testCatalog())

	body := createBody()
	body["coupon_code"] = "NOPE"

	code, env := doRequest(t, router, "POST", "/subscriptions", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func seedSubscription(store *fakeStore) *models.Subscription {
	cfg := schedule.Config{
		Items:         []schedule.Item{{ProductID: "prod_milk", Quantity: 2}},
		Frequency:     schedule.FrequencyWeekly,
		Slot:          schedule.Slot{Hour: 8, Minute: 0},
		DeliveryDays:  []int{1, 3, 5},
		AddressID:     "addr_1",
		PaymentMethod: schedule.PaymentWallet,
	}
	sub := models.Subscription{
		ID:            "sub_test",
		UserID:        "user_1",
		Frequency:     cfg.Frequency,
		Slot:          cfg.Slot,
		DeliveryDays:  cfg.DeliveryDays,
		AddressID:     cfg.AddressID,
		PaymentMethod: cfg.PaymentMethod,
		TotalAmount:   12000,
		Items:         []models.Item{{ID: "itm_1", SubscriptionID: "sub_test", ProductID: "prod_milk", UnitPrice: 6000, Quantity: 2}},
		Lifecycle:     schedule.NewLifecycle(cfg, time.Now()),
	}
	store.subs[sub.ID] = sub
	return &sub
}

func TestPauseResumeCancelFlow(t *testing.T) {
	store := newFakeStore()
	seedSubscription(store)
	router := testRouter(store, testCatalog())

	// Pause with a resume date.
	code, env := doRequest(t, router, "POST", "/subscriptions/sub_test/pause",
		map[string]interface{}{"reason": "vacation", "resume_date": time.Now().AddDate(0, 0, 14)})
	require.Equal(t, http.StatusOK, code)

	var sub models.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	assert.Equal(t, schedule.StatusPaused, sub.Status)
	assert.NotNil(t, sub.PausedUntil)

	// Pausing twice conflicts.
	code, env = doRequest(t, router, "POST", "/subscriptions/sub_test/pause", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, schedule.ErrAlreadyPaused.Message, env.Message)

	// Resume clears the pause and recomputes the next delivery.
	code, env = doRequest(t, router, "POST", "/subscriptions/sub_test/resume", nil)
	require.Equal(t, http.StatusOK, code)
	var resumed models.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &resumed))
	assert.Equal(t, schedule.StatusActive, resumed.Status)
	assert.Nil(t, resumed.PausedUntil)
	assert.True(t, resumed.NextDeliveryAt.After(time.Now()))

	// Resuming an active subscription conflicts.
	code, env = doRequest(t, router, "POST", "/subscriptions/sub_test/resume", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, schedule.ErrNotPaused.Message, env.Message)

	// Cancel is terminal.
	code, _ = doRequest(t, router, "POST", "/subscriptions/sub_test/cancel",
		map[string]interface{}{"reason": "moving"})
	require.Equal(t, http.StatusOK, code)

	for _, path := range []string{"/pause", "/resume", "/cancel"} {
		code, env = doRequest(t, router, "POST", "/subscriptions/sub_test"+path, nil)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, schedule.ErrAlreadyCancelled.Message, env.Message)
	}
}

func TestLifecycleUnknownSubscription(t *testing.T) {
	router := testRouter(newFakeStore(), testCatalog())

	for _, path := range []string{"/subscriptions/sub_missing/pause", "/subscriptions/sub_missing/resume", "/subscriptions/sub_missing/cancel"} {
		code, env := doRequest(t, router, "POST", path, nil)
		assert.Equal(t, http.StatusNotFound, code)
		assert.False(t, env.Success)
	}

	code, _ := doRequest(t, router, "GET", "/subscriptions/sub_missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUpdateScheduleRevalidates(t *testing.T) {
	store := newFakeStore()
	seedSubscription(store)
	router := testRouter(store, testCatalog())

	// Clearing the day set on a weekly subscription is rejected.
	code, env := doRequest(t, router, "PUT", "/subscriptions/sub_test",
		map[string]interface{}{"delivery_days": []int{}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "delivery day")

	// A new slot is accepted and the next delivery moves with it.
	code, env = doRequest(t, router, "PUT", "/subscriptions/sub_test",
		map[string]interface{}{"delivery_time": map[string]int{"hour": 18, "minute": 30}})
	require.Equal(t, http.StatusOK, code)

	var sub models.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	assert.Equal(t, 18, sub.NextDeliveryAt.Hour())
	assert.Equal(t, 30, sub.NextDeliveryAt.Minute())
}

func TestUpdateScheduleCancelledConflicts(t *testing.T) {
	store := newFakeStore()
	sub := seedSubscription(store)
	router := testRouter(store, testCatalog())

	_, _ = doRequest(t, router, "POST", "/subscriptions/"+sub.ID+"/cancel", nil)

	code, env := doRequest(t, router, "PUT", "/subscriptions/"+sub.ID,
		map[string]interface{}{"customer_notes": "leave at door"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, schedule.ErrAlreadyCancelled.Message, env.Message)
}

func TestListSubscriptionsFilters(t *testing.T) {
	store := newFakeStore()
	seedSubscription(store)
	router := testRouter(store, testCatalog())

	code, env := doRequest(t, router, "GET", "/subscriptions?status=active&user_id=user_1", nil)
	require.Equal(t, http.StatusOK, code)

	var data SubscriptionListData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 1, data.Total)

	code, env = doRequest(t, router, "GET", "/subscriptions?status=cancelled", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 0, data.Total)
}

func TestListDeliveries(t *testing.T) {
	store := newFakeStore()
	sub := seedSubscription(store)
	store.deliveries[sub.ID] = []models.DeliveryOrder{{
		ID: "del_1", SubscriptionID: sub.ID, UserID: sub.UserID,
		Amount: 12000, PaymentStatus: models.PaymentStatusPaid,
		Status: models.OrderStatusScheduled,
	}}
	router := testRouter(store, testCatalog())

	code, env := doRequest(t, router, "GET", "/subscriptions/"+sub.ID+"/deliveries", nil)
	require.Equal(t, http.StatusOK, code)

	var data DeliveryListData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, 1, data.Total)
	assert.Equal(t, "del_1", data.Deliveries[0].ID)

	code, _ = doRequest(t, router, "GET", "/subscriptions/sub_missing/deliveries", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestIntakeEvent(t *testing.T) {
	router := testRouter(newFakeStore(), testCatalog())

	code, _ := doRequest(t, router, "POST", "/internal/events",
		map[string]interface{}{"type": "delivery", "event": "charged", "data": map[string]string{"order_id": "del_1"}})
	assert.Equal(t, http.StatusOK, code)

	code, _ = doRequest(t, router, "POST", "/internal/events", map[string]interface{}{"type": ""})
	assert.Equal(t, http.StatusBadRequest, code)
}
