package service

import (
	"context"
	"time"

	bookingrepo "roomly/internal/bookings/repository"
	roomrepo "roomly/internal/rooms/repository"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/logger"
	"roomly/pkg/model"
)

// ScheduleService is the read-side calendar aggregator. It projects the
// reservation store only; the conflict index is a write-path concern and is
// never consulted here.
type ScheduleService interface {
	GetDaySchedule(ctx context.Context, date string, viewer model.Identity) (*model.DaySchedule, error)
}

type scheduleService struct {
	rooms    roomrepo.RoomRepository
	bookings bookingrepo.BookingRepository
	cfg      *config.Config
	log      *logger.Logger
	now      func() time.Time
}

func NewScheduleService(rooms roomrepo.RoomRepository, bookings bookingrepo.BookingRepository, cfg *config.Config) ScheduleService {
	return &scheduleService{
		rooms:    rooms,
		bookings: bookings,
		cfg:      cfg,
		log:      cfg.Log,
		now:      time.Now,
	}
}

// GetDaySchedule answers "what does every room look like on this date".
// A week view is just seven of these combined client-side.
func (s *scheduleService) GetDaySchedule(ctx context.Context, date string, viewer model.Identity) (*model.DaySchedule, error) {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, apperrors.InvalidInput("Invalid date, use YYYY-MM-DD")
	}

	active := true
	rooms, err := s.rooms.FindAll(ctx, model.RoomFilter{IsActive: &active}, config.DefaultPaginationLimit, 0)
	if err != nil {
		s.log.Error("Failed to load rooms for schedule", "date", date, "error", err)
		return nil, apperrors.Internal("Failed to load rooms", err)
	}

	bookings, err := s.bookings.FindActiveByDate(ctx, date)
	if err != nil {
		s.log.Error("Failed to load bookings for schedule", "date", date, "error", err)
		return nil, apperrors.Internal("Failed to load bookings", err)
	}

	now := s.now()
	byRoom := make(map[string][]model.ScheduleSlot, len(rooms))
	for _, b := range bookings {
		byRoom[b.RoomID] = append(byRoom[b.RoomID], model.ScheduleSlot{
			BookingID: b.ID,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			UserName:  b.UserName,
			Purpose:   b.Purpose,
			IsOwn:     !viewer.Anonymous() && b.UserID == viewer.UserID,
			CanCancel: b.CanCancel(now),
		})
	}

	schedule := &model.DaySchedule{
		Date:  date,
		Rooms: make([]model.RoomSchedule, 0, len(rooms)),
	}
	for _, room := range rooms {
		slots := byRoom[room.ID]
		if slots == nil {
			slots = []model.ScheduleSlot{}
		}
		schedule.Rooms = append(schedule.Rooms, model.RoomSchedule{
			RoomID:   room.ID,
			Name:     room.Name,
			Capacity: room.Capacity,
			Floor:    room.Floor,
			Bookings: slots,
		})
	}

	return schedule, nil
}
