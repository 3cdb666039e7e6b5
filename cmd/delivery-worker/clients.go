// cmd/delivery-worker/clients.go
package main

import (
	"context"
	"time"

	"github.com/freshbasket/subscriptions/internal/httpclient"
)

// WalletClient handles communication with the wallet service
type WalletClient struct {
	client *httpclient.Client
}

// NewWalletClient creates a new wallet service client
func NewWalletClient(baseURL string) *WalletClient {
	return &WalletClient{
		client: httpclient.NewClient(baseURL, 30*time.Second),
	}
}

// DebitRequest represents a wallet debit request. The idempotency key is
// the order ID, so a timed-out charge that actually landed is not
// collected twice on retry.
type DebitRequest struct {
	UserID         string `json:"user_id"`
	Amount         int64  `json:"amount"` // in paise
	IdempotencyKey string `json:"idempotency_key"`
	Reference      string `json:"reference"`
}

// DebitResponse represents the wallet's answer to a debit
type DebitResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Balance       int64  `json:"balance,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// Debit charges a user's wallet.
func (c *WalletClient) Debit(ctx context.Context, req *DebitRequest) (*DebitResponse, error) {
	var resp DebitResponse
	if err := c.client.Post(ctx, "/wallet/debit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks the health of the wallet service
func (c *WalletClient) Health(ctx context.Context) bool {
	return c.client.Get(ctx, "/health", nil) == nil
}
