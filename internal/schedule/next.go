package schedule

import (
	"time"
)

// NextDelivery computes the next delivery instant for a valid config,
// strictly after ref and at exactly the configured slot. The result is in
// ref's location.
func NextDelivery(cfg Config, ref time.Time) time.Time {
	switch cfg.Frequency {
	case FrequencyDaily:
		next := slotOn(ref, cfg.Slot)
		if next.After(ref) {
			return next
		}
		return slotOn(ref.AddDate(0, 0, 1), cfg.Slot)

	case FrequencyWeekly:
		wanted := make(map[int]bool, len(cfg.DeliveryDays))
		for _, day := range cfg.DeliveryDays {
			wanted[day] = true
		}
		// Check today first, then wrap across the week boundary. Offset 7
		// covers a single-day set whose slot already passed today.
		for offset := 0; offset <= 7; offset++ {
			day := ref.AddDate(0, 0, offset)
			if !wanted[int(day.Weekday())] {
				continue
			}
			if next := slotOn(day, cfg.Slot); next.After(ref) {
				return next
			}
		}
		return time.Time{}

	case FrequencyMonthly:
		next := monthDay(ref.Year(), ref.Month(), cfg.DeliveryDate, cfg.Slot, ref.Location())
		if next.After(ref) {
			return next
		}
		// time.Date normalizes month 13, so December rolls into
		// January of the next year.
		first := time.Date(ref.Year(), ref.Month()+1, 1, 0, 0, 0, 0, ref.Location())
		return monthDay(first.Year(), first.Month(), cfg.DeliveryDate, cfg.Slot, ref.Location())
	}

	return time.Time{}
}

// slotOn pins the slot's time of day onto the calendar date of t.
func slotOn(t time.Time, s Slot) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, t.Location())
}

// monthDay returns the slot on the requested day of month, clamped to the
// last day of short months (day 31 in February resolves to Feb 28/29).
func monthDay(year int, month time.Month, day int, s Slot, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, s.Hour, s.Minute, 0, 0, loc)
}
