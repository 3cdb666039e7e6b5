package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeLifecycle() Lifecycle {
	return Lifecycle{
		Status:         StatusActive,
		NextDeliveryAt: at(2024, 6, 14, 8, 0),
	}
}

func TestNewLifecycle(t *testing.T) {
	cfg := validWeeklyConfig()
	now := at(2024, 6, 12, 10, 0) // Wednesday after the slot

	lc := NewLifecycle(cfg, now)
	assert.Equal(t, StatusActive, lc.Status)
	assert.Equal(t, at(2024, 6, 14, 8, 0), lc.NextDeliveryAt)
	assert.Nil(t, lc.PausedUntil)
}

func TestNewLifecycleHonorsStartDate(t *testing.T) {
	cfg := dailyConfig(8, 0)
	start := at(2024, 7, 1, 0, 0)
	cfg.StartDate = &start

	lc := NewLifecycle(cfg, at(2024, 6, 12, 10, 0))
	assert.Equal(t, at(2024, 7, 1, 8, 0), lc.NextDeliveryAt)

	// A start date in the past falls back to now.
	past := at(2024, 1, 1, 0, 0)
	cfg.StartDate = &past
	lc = NewLifecycle(cfg, at(2024, 6, 12, 10, 0))
	assert.Equal(t, at(2024, 6, 13, 8, 0), lc.NextDeliveryAt)
}

func TestPause(t *testing.T) {
	lc := activeLifecycle()
	resume := at(2024, 7, 1, 0, 0)

	require.NoError(t, lc.Pause("out of town", &resume))
	assert.Equal(t, StatusPaused, lc.Status)
	assert.Equal(t, &resume, lc.PausedUntil)
	assert.Equal(t, "out of town", lc.PauseReason)
	// Pausing leaves the scheduled delivery alone until resume.
	assert.Equal(t, at(2024, 6, 14, 8, 0), lc.NextDeliveryAt)
}

func TestPauseAcceptsPastResumeDate(t *testing.T) {
	// A resume date in the past is stored as given; resume stays explicit.
	lc := activeLifecycle()
	past := at(2020, 1, 1, 0, 0)

	require.NoError(t, lc.Pause("", &past))
	assert.Equal(t, StatusPaused, lc.Status)
	assert.Equal(t, &past, lc.PausedUntil)
}

func TestResume(t *testing.T) {
	cfg := validWeeklyConfig()
	lc := activeLifecycle()
	resume := at(2024, 6, 20, 0, 0)
	require.NoError(t, lc.Pause("vacation", &resume))

	now := at(2024, 6, 17, 12, 0) // Monday after the slot
	require.NoError(t, lc.Resume(cfg, now))
	assert.Equal(t, StatusActive, lc.Status)
	assert.Nil(t, lc.PausedUntil)
	assert.Empty(t, lc.PauseReason)
	// Next delivery recomputed from now: Wednesday 08:00.
	assert.Equal(t, at(2024, 6, 19, 8, 0), lc.NextDeliveryAt)
}

func TestCancel(t *testing.T) {
	lc := activeLifecycle()
	require.NoError(t, lc.Cancel("moving away"))
	assert.Equal(t, StatusCancelled, lc.Status)
	assert.Equal(t, "moving away", lc.CancelReason)
}

func TestCancelFromPaused(t *testing.T) {
	lc := activeLifecycle()
	require.NoError(t, lc.Pause("", nil))
	require.NoError(t, lc.Cancel(""))
	assert.Equal(t, StatusCancelled, lc.Status)
	assert.Nil(t, lc.PausedUntil)
}

// Every state/action combination either succeeds or returns a named
// transition error; nothing panics and failures never mutate state.
func TestTransitionTotality(t *testing.T) {
	cfg := validWeeklyConfig()
	now := at(2024, 6, 12, 10, 0)

	type action struct {
		name  string
		apply func(*Lifecycle) error
	}
	actions := []action{
		{"pause", func(l *Lifecycle) error { return l.Pause("", nil) }},
		{"resume", func(l *Lifecycle) error { return l.Resume(cfg, now) }},
		{"cancel", func(l *Lifecycle) error { return l.Cancel("") }},
	}

	wantErr := map[Status]map[string]error{
		StatusActive:    {"pause": nil, "resume": ErrNotPaused, "cancel": nil},
		StatusPaused:    {"pause": ErrAlreadyPaused, "resume": nil, "cancel": nil},
		StatusCancelled: {"pause": ErrAlreadyCancelled, "resume": ErrAlreadyCancelled, "cancel": ErrAlreadyCancelled},
	}

	build := map[Status]func() Lifecycle{
		StatusActive: activeLifecycle,
		StatusPaused: func() Lifecycle {
			l := activeLifecycle()
			l.Pause("", nil)
			return l
		},
		StatusCancelled: func() Lifecycle {
			l := activeLifecycle()
			l.Cancel("")
			return l
		},
	}

	for status, byAction := range wantErr {
		for _, act := range actions {
			t.Run(string(status)+"_"+act.name, func(t *testing.T) {
				lc := build[status]()
				before := lc
				err := act.apply(&lc)
				assert.Equal(t, byAction[act.name], err)
				if byAction[act.name] != nil {
					assert.Equal(t, before, lc, "failed transition must not mutate state")
				}
			})
		}
	}
}

func TestCancelIdempotentFailure(t *testing.T) {
	lc := activeLifecycle()
	require.NoError(t, lc.Cancel("first"))
	after := lc

	for i := 0; i < 3; i++ {
		err := lc.Cancel("again")
		assert.Equal(t, ErrAlreadyCancelled, err)
		assert.Equal(t, after, lc)
	}
}

func TestTransitionErrorsAreTyped(t *testing.T) {
	lc := activeLifecycle()
	err := lc.Resume(validWeeklyConfig(), time.Now())
	var terr TransitionError
	assert.ErrorAs(t, err, &terr)
}
