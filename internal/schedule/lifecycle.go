package schedule

import (
	"time"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

// TransitionError is returned when a lifecycle action is not valid in the
// subscription's current state. These are user-driven one-shot actions, so
// callers surface them and never retry.
type TransitionError struct {
	Message string
}

func (e TransitionError) Error() string {
	return e.Message
}

var (
	ErrAlreadyCancelled = TransitionError{Message: "subscription is cancelled and cannot change state"}
	ErrAlreadyPaused    = TransitionError{Message: "subscription is already paused"}
	ErrNotPaused        = TransitionError{Message: "subscription is not paused"}
)

// Lifecycle holds the state-machine fields of a subscription. It is
// embedded in the persisted entity; transitions either mutate it fully or
// return an error and leave it untouched.
type Lifecycle struct {
	Status         Status     `json:"status"`
	NextDeliveryAt time.Time  `json:"next_delivery_date"`
	PausedUntil    *time.Time `json:"paused_until,omitempty"`
	PauseReason    string     `json:"pause_reason,omitempty"`
	CancelReason   string     `json:"cancel_reason,omitempty"`
}

// NewLifecycle starts a subscription in active state with the first
// delivery computed from the config's start date, or from now when no
// start date was given.
func NewLifecycle(cfg Config, now time.Time) Lifecycle {
	ref := now
	if cfg.StartDate != nil && cfg.StartDate.After(now) {
		ref = *cfg.StartDate
	}
	return Lifecycle{
		Status:         StatusActive,
		NextDeliveryAt: NextDelivery(cfg, ref),
	}
}

// Pause moves an active subscription to paused. The resume date is stored
// as given, even when it lies in the past: pausing never auto-resumes and
// the worker skips paused subscriptions regardless. NextDeliveryAt is left
// alone until the subscription is resumed.
func (l *Lifecycle) Pause(reason string, resumeAt *time.Time) error {
	switch l.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusPaused:
		return ErrAlreadyPaused
	}
	l.Status = StatusPaused
	l.PausedUntil = resumeAt
	l.PauseReason = reason
	return nil
}

// Resume reactivates a paused subscription and recomputes the next
// delivery from now. Resuming before PausedUntil is allowed; the stored
// date is advisory only.
func (l *Lifecycle) Resume(cfg Config, now time.Time) error {
	switch l.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusActive:
		return ErrNotPaused
	}
	l.Status = StatusActive
	l.PausedUntil = nil
	l.PauseReason = ""
	l.NextDeliveryAt = NextDelivery(cfg, now)
	return nil
}

// Cancel is terminal: no transition leaves the cancelled state, and
// cancelling twice fails the same way every time without mutating anything.
func (l *Lifecycle) Cancel(reason string) error {
	if l.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	l.Status = StatusCancelled
	l.PausedUntil = nil
	l.CancelReason = reason
	return nil
}
