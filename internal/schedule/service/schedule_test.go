package service

import (
	"context"
	"testing"
	"time"

	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/logger"
	"roomly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

type mockRoomRepository struct {
	rooms []*model.Room
}

func (m *mockRoomRepository) Create(ctx context.Context, room *model.Room) error { return nil }

func (m *mockRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	return nil, nil
}

func (m *mockRoomRepository) FindAll(ctx context.Context, filter model.RoomFilter, limit int, offset int64) ([]*model.Room, error) {
	return m.rooms, nil
}

func (m *mockRoomRepository) Count(ctx context.Context, filter model.RoomFilter) (int64, error) {
	return int64(len(m.rooms)), nil
}

func (m *mockRoomRepository) Update(ctx context.Context, id string, updates bson.M) (*model.Room, error) {
	return nil, nil
}

func (m *mockRoomRepository) EnsureIndexes(ctx context.Context) error { return nil }

type mockBookingRepository struct {
	bookings []*model.Booking
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) FindByToken(ctx context.Context, token string) (*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) FindActiveByRoomAndDate(ctx context.Context, roomID, date string) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) FindActiveFromDate(ctx context.Context, date string) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) FindActiveByDate(ctx context.Context, date string) ([]*model.Booking, error) {
	var out []*model.Booking
	for _, b := range m.bookings {
		if b.BookingDate == date && b.Status == model.StatusActive {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBookingRepository) List(ctx context.Context, filter model.BookingFilter, now time.Time, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) CountList(ctx context.Context, filter model.BookingFilter, now time.Time) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepository) Cancel(ctx context.Context, id, actor string, at time.Time) (*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) EnsureIndexes(ctx context.Context) error { return nil }

func newTestService(rooms []*model.Room, bookings []*model.Booking) *scheduleService {
	cfg := &config.Config{
		Log: logger.New(logger.Config{Level: "error", Format: "json", Service: "test"}),
	}
	return &scheduleService{
		rooms:    &mockRoomRepository{rooms: rooms},
		bookings: &mockBookingRepository{bookings: bookings},
		cfg:      cfg,
		log:      cfg.Log,
		now: func() time.Time {
			return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		},
	}
}

func TestGetDayScheduleInvalidDate(t *testing.T) {
	svc := newTestService(nil, nil)

	_, err := svc.GetDaySchedule(context.Background(), "10-03-2026", model.Identity{UserID: "user-1"})
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestGetDayScheduleGroupsByRoom(t *testing.T) {
	rooms := []*model.Room{
		{ID: "room-1", Name: "Aurora", Capacity: 8, IsActive: true},
		{ID: "room-2", Name: "Borealis", Capacity: 4, IsActive: true},
	}
	bookings := []*model.Booking{
		{
			ID: "b1", RoomID: "room-1", UserID: "user-1", UserName: "Alex",
			BookingDate: "2026-03-11", StartTime: "10:00", EndTime: "11:00",
			Status: model.StatusActive,
		},
		{
			ID: "b2", RoomID: "room-1", UserID: "user-2", UserName: "Sam",
			BookingDate: "2026-03-11", StartTime: "14:00", EndTime: "15:00",
			Status: model.StatusActive,
		},
		{
			ID: "b3", RoomID: "room-1", UserID: "user-1", UserName: "Alex",
			BookingDate: "2026-03-12", StartTime: "10:00", EndTime: "11:00",
			Status: model.StatusActive,
		},
	}

	svc := newTestService(rooms, bookings)
	viewer := model.Identity{UserID: "user-1", UserName: "Alex"}

	schedule, err := svc.GetDaySchedule(context.Background(), "2026-03-11", viewer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if schedule.Date != "2026-03-11" {
		t.Errorf("expected date 2026-03-11, got %s", schedule.Date)
	}
	if len(schedule.Rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(schedule.Rooms))
	}

	aurora := schedule.Rooms[0]
	if aurora.RoomID != "room-1" {
		t.Fatalf("expected room-1 first, got %s", aurora.RoomID)
	}
	if len(aurora.Bookings) != 2 {
		t.Fatalf("expected 2 slots in room-1, got %d", len(aurora.Bookings))
	}
	if !aurora.Bookings[0].IsOwn {
		t.Error("the viewer's booking should be marked is_own")
	}
	if aurora.Bookings[1].IsOwn {
		t.Error("another user's booking must not be marked is_own")
	}
	if !aurora.Bookings[0].CanCancel {
		t.Error("a future booking should be cancellable")
	}

	// Rooms without bookings render an empty list, not null.
	borealis := schedule.Rooms[1]
	if borealis.Bookings == nil {
		t.Error("expected an empty slot list for an idle room, got nil")
	}
	if len(borealis.Bookings) != 0 {
		t.Errorf("expected no slots in room-2, got %d", len(borealis.Bookings))
	}
}

func TestGetDayScheduleAnonymousViewer(t *testing.T) {
	rooms := []*model.Room{{ID: "room-1", Name: "Aurora", Capacity: 8, IsActive: true}}
	bookings := []*model.Booking{
		{
			ID: "b1", RoomID: "room-1", UserID: "user-1", UserName: "Alex",
			BookingDate: "2026-03-11", StartTime: "10:00", EndTime: "11:00",
			Status: model.StatusActive,
		},
	}

	svc := newTestService(rooms, bookings)

	schedule, err := svc.GetDaySchedule(context.Background(), "2026-03-11", model.Identity{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schedule.Rooms[0].Bookings[0].IsOwn {
		t.Error("an anonymous viewer must never see is_own")
	}
}
