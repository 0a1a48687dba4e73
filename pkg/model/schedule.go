package model

import "time"

// ScheduleSlot is one booked interval in a room's day view.
type ScheduleSlot struct {
	BookingID string `json:"booking_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	UserName  string `json:"user_name"`
	Purpose   string `json:"purpose,omitempty"`
	IsOwn     bool   `json:"is_own"`
	CanCancel bool   `json:"can_cancel"`
}

// RoomSchedule is one room's ordered slots for the requested date.
type RoomSchedule struct {
	RoomID   string         `json:"room_id"`
	Name     string         `json:"name"`
	Capacity int            `json:"capacity"`
	Floor    *int           `json:"floor,omitempty"`
	Bookings []ScheduleSlot `json:"bookings"`
}

// DaySchedule is the full aggregation answer for one date.
type DaySchedule struct {
	Date  string         `json:"date"`
	Rooms []RoomSchedule `json:"rooms"`
}

// BookingView decorates a booking with the per-viewer derived fields the
// clients render. The cancellation token is only populated on the create
// and token-lookup paths.
type BookingView struct {
	Booking
	CancellationToken string `json:"cancellation_token,omitempty"`
	CanCancel         bool   `json:"can_cancel"`
	DurationMinutes   int    `json:"duration_minutes"`
	IsOwn             bool   `json:"is_own"`
}

// BookingCreateResult is the admission answer: the stored booking plus the
// capability token and the URL a holder can use to view or cancel it.
type BookingCreateResult struct {
	Booking           BookingView `json:"booking"`
	CancellationToken string      `json:"cancellation_token"`
	CancellationURL   string      `json:"cancellation_url"`
}

// NewBookingView derives the view fields for a viewer at a point in time.
// An empty viewerID (anonymous token holder) never sets is_own.
func NewBookingView(b *Booking, viewerID string, now time.Time) BookingView {
	return BookingView{
		Booking:         *b,
		CanCancel:       b.CanCancel(now),
		DurationMinutes: b.DurationMinutes(),
		IsOwn:           viewerID != "" && b.UserID == viewerID,
	}
}
