package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Booking is the store-of-record document. Start/end form a half-open
// interval [start, end) on a single day. Room name and user name are
// denormalized at creation so list projections need no join.
type Booking struct {
	ID                string     `json:"id" bson:"_id"`
	RoomID            string     `json:"room_id" bson:"room_id"`
	RoomName          string     `json:"room_name" bson:"room_name"`
	UserID            string     `json:"user_id" bson:"user_id"`
	UserName          string     `json:"user_name" bson:"user_name"`
	BookingDate       string     `json:"booking_date" bson:"booking_date"`
	StartTime         string     `json:"start_time" bson:"start_time"`
	EndTime           string     `json:"end_time" bson:"end_time"`
	Purpose           string     `json:"purpose,omitempty" bson:"purpose,omitempty"`
	CancellationToken string     `json:"-" bson:"cancellation_token"`
	Status            string     `json:"status" bson:"status"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CancelledBy       string     `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
}

// BookingCreate is the request payload for admission.
type BookingCreate struct {
	RoomID      string `json:"room_id" validate:"required,uuid4"`
	BookingDate string `json:"booking_date" validate:"required,bookdate"`
	StartTime   string `json:"start_time" validate:"required,clocktime"`
	EndTime     string `json:"end_time" validate:"required,clocktime"`
	Purpose     string `json:"purpose" validate:"omitempty,max=500"`
}

// BookingFilter narrows list projections. Zero values mean "no filter".
type BookingFilter struct {
	RoomID     string
	UserID     string
	Status     string
	DateFrom   string
	DateTo     string
	FutureOnly bool
}

// ParseClock converts "HH:MM" to minutes from midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// FormatClock converts minutes from midnight back to "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// StartsAt resolves the booking's date and start time to a wall-clock
// instant in loc.
func (b *Booking) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+ClockLayout, b.BookingDate+" "+b.StartTime, loc)
}

// CanCancel reports whether the booking is still cancellable: it must be
// Active and must not have started yet.
func (b *Booking) CanCancel(now time.Time) bool {
	if b.Status != StatusActive {
		return false
	}
	start, err := b.StartsAt(now.Location())
	if err != nil {
		return false
	}
	return now.Before(start)
}

// DurationMinutes is the interval length; zero when times are malformed.
func (b *Booking) DurationMinutes() int {
	start, err1 := ParseClock(b.StartTime)
	end, err2 := ParseClock(b.EndTime)
	if err1 != nil || err2 != nil || end < start {
		return 0
	}
	return end - start
}
