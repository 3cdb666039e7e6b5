package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func dailyConfig(hour, min int) Config {
	cfg := validWeeklyConfig()
	cfg.Frequency = FrequencyDaily
	cfg.DeliveryDays = nil
	cfg.Slot = Slot{Hour: hour, Minute: min}
	return cfg
}

func TestNextDeliveryDaily(t *testing.T) {
	cfg := dailyConfig(8, 30)

	// Before the slot: same day.
	ref := at(2024, 6, 12, 6, 0)
	assert.Equal(t, at(2024, 6, 12, 8, 30), NextDelivery(cfg, ref))

	// After the slot: the following day.
	ref = at(2024, 6, 12, 9, 0)
	assert.Equal(t, at(2024, 6, 13, 8, 30), NextDelivery(cfg, ref))

	// Exactly at the slot: strictly after means tomorrow.
	ref = at(2024, 6, 12, 8, 30)
	assert.Equal(t, at(2024, 6, 13, 8, 30), NextDelivery(cfg, ref))
}

func TestNextDeliveryDailyWithin24Hours(t *testing.T) {
	cfg := dailyConfig(23, 45)
	refs := []time.Time{
		at(2024, 2, 28, 0, 0),
		at(2024, 2, 28, 23, 44),
		at(2024, 2, 28, 23, 46),
		at(2024, 12, 31, 12, 0),
	}
	for _, ref := range refs {
		next := NextDelivery(cfg, ref)
		assert.True(t, next.After(ref))
		assert.LessOrEqual(t, next.Sub(ref), 24*time.Hour)
		assert.Equal(t, 23, next.Hour())
		assert.Equal(t, 45, next.Minute())
	}
}

func TestNextDeliveryWeekly(t *testing.T) {
	// Monday, Wednesday, Friday at 08:00. Reference is Wednesday 10:00:
	// today's slot already passed, so the next candidate is Friday.
	cfg := validWeeklyConfig()
	ref := at(2024, 6, 12, 10, 0) // Wednesday
	require.Equal(t, time.Wednesday, ref.Weekday())

	next := NextDelivery(cfg, ref)
	assert.Equal(t, at(2024, 6, 14, 8, 0), next)
	assert.Equal(t, time.Friday, next.Weekday())
}

func TestNextDeliveryWeeklySameDayBeforeSlot(t *testing.T) {
	cfg := validWeeklyConfig()
	ref := at(2024, 6, 12, 7, 0) // Wednesday before 08:00
	assert.Equal(t, at(2024, 6, 12, 8, 0), NextDelivery(cfg, ref))
}

func TestNextDeliveryWeeklyWrapsWeekBoundary(t *testing.T) {
	// Only Wednesday in the set, reference Wednesday after the slot: the
	// search must wrap to the same weekday next week.
	cfg := validWeeklyConfig()
	cfg.DeliveryDays = []int{3}
	ref := at(2024, 6, 12, 10, 0)

	next := NextDelivery(cfg, ref)
	assert.Equal(t, at(2024, 6, 19, 8, 0), next)

	// Saturday set, reference Sunday: wraps past the end of the week.
	cfg.DeliveryDays = []int{6}
	ref = at(2024, 6, 16, 12, 0) // Sunday
	require.Equal(t, time.Sunday, ref.Weekday())
	assert.Equal(t, at(2024, 6, 22, 8, 0), NextDelivery(cfg, ref))
}

func TestNextDeliveryWeeklyEarliestWins(t *testing.T) {
	cfg := validWeeklyConfig()
	cfg.DeliveryDays = []int{0, 1, 2, 3, 4, 5, 6}
	ref := at(2024, 6, 12, 10, 0)

	// Every day qualifies; the earliest is tomorrow.
	assert.Equal(t, at(2024, 6, 13, 8, 0), NextDelivery(cfg, ref))
}

func monthlyConfig(day int) Config {
	cfg := validWeeklyConfig()
	cfg.Frequency = FrequencyMonthly
	cfg.DeliveryDays = nil
	cfg.DeliveryDate = day
	return cfg
}

func TestNextDeliveryMonthly(t *testing.T) {
	cfg := monthlyConfig(15)

	// Before the 15th: this month.
	assert.Equal(t, at(2024, 6, 15, 8, 0), NextDelivery(cfg, at(2024, 6, 5, 10, 0)))

	// After the 15th: next month.
	assert.Equal(t, at(2024, 7, 15, 8, 0), NextDelivery(cfg, at(2024, 6, 20, 10, 0)))

	// Exactly at the slot on the 15th: strictly after, so next month.
	assert.Equal(t, at(2024, 7, 15, 8, 0), NextDelivery(cfg, at(2024, 6, 15, 8, 0)))

	// December rolls into January.
	assert.Equal(t, at(2025, 1, 15, 8, 0), NextDelivery(cfg, at(2024, 12, 20, 0, 0)))
}

func TestNextDeliveryMonthlyClampsShortMonths(t *testing.T) {
	cfg := monthlyConfig(31)

	// Day 31 in February clamps to the last day of the month.
	assert.Equal(t, at(2023, 2, 28, 8, 0), NextDelivery(cfg, at(2023, 2, 5, 10, 0)))

	// Leap year February has 29 days.
	assert.Equal(t, at(2024, 2, 29, 8, 0), NextDelivery(cfg, at(2024, 2, 5, 10, 0)))

	// April has 30.
	assert.Equal(t, at(2024, 4, 30, 8, 0), NextDelivery(cfg, at(2024, 4, 1, 0, 0)))

	// A month with 31 days is unaffected.
	assert.Equal(t, at(2024, 5, 31, 8, 0), NextDelivery(cfg, at(2024, 5, 1, 0, 0)))
}

func TestNextDeliveryMonthlyClampedDayAlreadyPassed(t *testing.T) {
	// Reference is Feb 29 after the slot; the clamped February date is
	// gone, so the next occurrence is March 31.
	cfg := monthlyConfig(31)
	assert.Equal(t, at(2024, 3, 31, 8, 0), NextDelivery(cfg, at(2024, 2, 29, 9, 0)))
}

func TestNextDeliveryStrictlyAfterReference(t *testing.T) {
	configs := []Config{dailyConfig(0, 0), validWeeklyConfig(), monthlyConfig(1)}
	refs := []time.Time{
		at(2024, 1, 1, 0, 0),
		at(2024, 2, 29, 23, 59),
		at(2024, 12, 31, 23, 59),
	}
	for _, cfg := range configs {
		for _, ref := range refs {
			next := NextDelivery(cfg, ref)
			assert.True(t, next.After(ref), "next %v must be after ref %v (%s)", next, ref, cfg.Frequency)
		}
	}
}

func TestNextDeliveryPreservesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	cfg := dailyConfig(8, 0)
	ref := time.Date(2024, 6, 12, 10, 0, 0, 0, loc)
	next := NextDelivery(cfg, ref)
	assert.Equal(t, loc, next.Location())
	assert.Equal(t, 8, next.Hour())
}
