// Package policy holds the pure booking-window rules: the allowed horizon
// (today through N days ahead) and time-range validity. No shared state;
// every function is a pure function of its inputs.
package policy

import (
	"fmt"
	"time"

	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/model"
)

// Rules are the configured envelope a booking request must fit.
type Rules struct {
	WindowDays     int
	ServiceStart   int // minutes from midnight, inclusive
	ServiceEnd     int // minutes from midnight, exclusive booking end bound
	GranularityMin int
}

// FromConfig derives Rules from validated service configuration.
func FromConfig(cfg *config.Config) Rules {
	start, _ := model.ParseClock(cfg.ServiceHoursStart)
	end, _ := model.ParseClock(cfg.ServiceHoursEnd)
	return Rules{
		WindowDays:     cfg.BookingWindowDays,
		ServiceStart:   start,
		ServiceEnd:     end,
		GranularityMin: cfg.SlotGranularityMin,
	}
}

// Today truncates now to its calendar date.
func Today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// ValidateWindow checks the date/time envelope of a booking request against
// the rules, with now fixed by the caller. It returns an InvalidRange or
// OutOfWindow error, or nil.
func (r Rules) ValidateWindow(date, start, end string, now time.Time) error {
	startMin, err := model.ParseClock(start)
	if err != nil {
		return apperrors.InvalidRange("Invalid start time", map[string]any{"start_time": start})
	}
	endMin, err := model.ParseClock(end)
	if err != nil {
		return apperrors.InvalidRange("Invalid end time", map[string]any{"end_time": end})
	}

	if startMin >= endMin {
		return apperrors.InvalidRange("End time must be after start time", map[string]any{
			"start_time": start,
			"end_time":   end,
		})
	}

	if startMin < r.ServiceStart || endMin > r.ServiceEnd {
		return apperrors.InvalidRange("Booking must fall within service hours", map[string]any{
			"service_hours_start": model.FormatClock(r.ServiceStart),
			"service_hours_end":   model.FormatClock(r.ServiceEnd),
		})
	}

	if startMin%r.GranularityMin != 0 || endMin%r.GranularityMin != 0 {
		return apperrors.InvalidRange(
			fmt.Sprintf("Times must align to %d-minute slots", r.GranularityMin),
			map[string]any{"granularity_min": r.GranularityMin},
		)
	}

	day, err := time.ParseInLocation(model.DateLayout, date, now.Location())
	if err != nil {
		return apperrors.InvalidRange("Invalid booking date", map[string]any{"booking_date": date})
	}

	today := Today(now)
	if day.Before(today) {
		return apperrors.OutOfWindow("Cannot book a past date", map[string]any{"booking_date": date})
	}

	// Boundary inclusive: exactly today+N days is still bookable.
	maxDate := today.AddDate(0, 0, r.WindowDays)
	if day.After(maxDate) {
		return apperrors.OutOfWindow(
			fmt.Sprintf("Bookings are accepted at most %d days ahead", r.WindowDays),
			map[string]any{
				"booking_date": date,
				"max_date":     maxDate.Format(model.DateLayout),
			},
		)
	}

	// Same-day bookings cannot start in the past.
	if day.Equal(today) {
		nowMin := now.Hour()*60 + now.Minute()
		if startMin < nowMin {
			return apperrors.OutOfWindow("Cannot book a past time today", map[string]any{
				"start_time": start,
			})
		}
	}

	return nil
}
