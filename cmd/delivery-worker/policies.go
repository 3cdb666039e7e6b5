// cmd/delivery-worker/policies.go
package main

import (
	"time"
)

// DeclineType represents the type of wallet charge decline
type DeclineType string

const (
	DeclineTypeSoft DeclineType = "soft" // Temporary issue, retry
	DeclineTypeHard DeclineType = "hard" // Permanent issue, don't retry
)

// RetryPolicy defines the retry behavior for failed wallet charges
type RetryPolicy struct {
	MaxAttempts    int             `json:"max_attempts"`
	RetryIntervals []time.Duration `json:"retry_intervals"`
}

// DefaultRetryPolicy returns the default retry policy:
// 3 attempts at 1 hour, 6 hours and 24 hours after the original charge.
// The last interval stays inside a day so a top-up can still save the
// delivery before the slot passes.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		RetryIntervals: []time.Duration{
			1 * time.Hour,
			6 * time.Hour,
			24 * time.Hour,
		},
	}
}

// GetRetryInterval returns the interval for a given attempt number
func (p *RetryPolicy) GetRetryInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return p.RetryIntervals[0]
	}
	if attempt > len(p.RetryIntervals) {
		return p.RetryIntervals[len(p.RetryIntervals)-1]
	}
	return p.RetryIntervals[attempt-1]
}

// ShouldRetry determines if a failed charge should be retried
func (p *RetryPolicy) ShouldRetry(errorCode string, attempt int) (bool, DeclineType) {
	if attempt >= p.MaxAttempts {
		return false, DeclineTypeHard
	}

	declineType := ClassifyWalletError(errorCode)
	return declineType == DeclineTypeSoft, declineType
}

// CalculateNextRetry calculates the next retry time
func (p *RetryPolicy) CalculateNextRetry(attempt int) time.Time {
	return time.Now().Add(p.GetRetryInterval(attempt))
}

// ClassifyWalletError determines if a wallet error is a soft or hard
// decline. Soft declines are conditions the user or the platform can fix
// before the next attempt; hard declines will fail every attempt the same
// way.
func ClassifyWalletError(errorCode string) DeclineType {
	hardDeclines := map[string]bool{
		"invalid_account":   true,
		"wallet_closed":     true,
		"debit_not_allowed": true,
		"user_blocked":      true,
		"invalid_amount":    true,
	}

	if hardDeclines[errorCode] {
		return DeclineTypeHard
	}

	softDeclines := map[string]bool{
		"insufficient_balance": true,
		"wallet_locked":        true,
		"timeout":              true,
		"network_error":        true,
		"service_unavailable":  true,
		"try_again_later":      true,
		"WALLET_ERROR":         true, // Our internal error
	}

	if softDeclines[errorCode] {
		return DeclineTypeSoft
	}

	// Unknown errors default to soft decline (will retry)
	return DeclineTypeSoft
}
