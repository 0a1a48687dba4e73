package service

import (
	"context"
	"errors"
	"time"

	"roomly/internal/bookings/conflict"
	bookingserrors "roomly/internal/bookings/errors"
	"roomly/internal/bookings/policy"
	"roomly/internal/bookings/repository"
	"roomly/internal/bookings/validator"
	roomrepo "roomly/internal/rooms/repository"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/events"
	"roomly/pkg/metrics"
	"roomly/pkg/model"
	"roomly/pkg/sanitizer"

	"github.com/google/uuid"
)

// BookingService is the scheduling engine: the single choke point for
// admission and cancellation, and the only component that touches the
// conflict index and the reservation store together.
type BookingService interface {
	Create(ctx context.Context, actor model.Identity, req *model.BookingCreate) (*model.BookingCreateResult, error)
	CancelByID(ctx context.Context, actor model.Identity, id string) error
	CancelByToken(ctx context.Context, token string) error
	GetByToken(ctx context.Context, token string) (*model.BookingView, error)
	ListUserBookings(ctx context.Context, userID, status string, futureOnly bool, limit int, offset int64) ([]model.BookingView, int64, error)
	ListAllBookings(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]model.BookingView, int64, error)
	RebuildIndex(ctx context.Context) error
}

type bookingService struct {
	repo      repository.BookingRepository
	rooms     roomrepo.RoomRepository
	index     *conflict.Index
	rules     policy.Rules
	validator *validator.BookingValidator
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	rooms roomrepo.RoomRepository,
	index *conflict.Index,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		rooms:     rooms,
		index:     index,
		rules:     policy.FromConfig(cfg),
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create admits a booking: validation happens before any lock, the overlap
// check and both mutations happen under the per-(room,date) admission right,
// and a failure at any point leaves no partial state behind.
func (s *bookingService) Create(ctx context.Context, actor model.Identity, req *model.BookingCreate) (*model.BookingCreateResult, error) {
	if actor.Anonymous() {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	req.Purpose = sanitizer.NormalizePurpose(req.Purpose)
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	now := s.now()
	if err := s.rules.ValidateWindow(req.BookingDate, req.StartTime, req.EndTime, now); err != nil {
		return nil, err
	}

	room, err := s.rooms.FindByID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, roomrepo.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Room", req.RoomID)
		}
		return nil, apperrors.Internal("Failed to resolve room", err)
	}
	if !room.IsActive {
		return nil, apperrors.InvalidInput("Room is not available for booking")
	}

	startMin, _ := model.ParseClock(req.StartTime)
	endMin, _ := model.ParseClock(req.EndTime)
	key := conflict.Key{RoomID: room.ID, Date: req.BookingDate}
	iv := conflict.Interval{Start: startMin, End: endMin}

	release, err := s.index.Acquire(ctx, key, s.cfg.AdmissionLockWait)
	if err != nil {
		if errors.Is(err, conflict.ErrBusy) {
			metrics.IncAdmissionBusy()
			s.cfg.Log.Warn("Admission lock wait timed out", "room_id", room.ID, "date", req.BookingDate)
			return nil, apperrors.Busy("The slot is being booked by another request, retry shortly")
		}
		return nil, apperrors.Internal("Failed to acquire admission lock", err)
	}
	defer release()

	if s.index.Conflicts(key, iv) {
		metrics.IncSlotConflict()
		return nil, apperrors.SlotTaken("This time slot is already booked")
	}

	booking := &model.Booking{
		ID:                uuid.NewString(),
		RoomID:            room.ID,
		RoomName:          room.Name,
		UserID:            actor.UserID,
		UserName:          actor.UserName,
		BookingDate:       req.BookingDate,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Purpose:           req.Purpose,
		CancellationToken: uuid.NewString(),
		Status:            model.StatusActive,
		CreatedAt:         now,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, apperrors.Internal("Failed to persist booking", err)
	}

	if err := s.index.Register(key, iv, booking.ID); err != nil {
		// Cannot happen while we hold the admission right; if it does, the
		// stored record must not stay visible as Active.
		if _, cancelErr := s.repo.Cancel(ctx, booking.ID, "system", s.now()); cancelErr != nil {
			s.cfg.Log.Error("Failed to roll back booking after index registration failure",
				"booking_id", booking.ID, "error", cancelErr)
		}
		return nil, apperrors.Internal("Failed to register booking interval", err)
	}

	metrics.IncBookingCreated()
	s.publisher.Publish(ctx, events.FromBooking(events.TypeBookingCreated, booking))
	s.cfg.Log.Info("Booking created",
		"booking_id", booking.ID,
		"room_id", booking.RoomID,
		"date", booking.BookingDate,
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
		"user_id", booking.UserID,
	)

	return &model.BookingCreateResult{
		Booking:           model.NewBookingView(booking, actor.UserID, now),
		CancellationToken: booking.CancellationToken,
		CancellationURL:   s.cfg.PublicBaseURL + "/cancel/" + booking.CancellationToken,
	}, nil
}

// CancelByID cancels on behalf of an identified actor: the owner or an
// admin.
func (s *bookingService) CancelByID(ctx context.Context, actor model.Identity, id string) error {
	if actor.Anonymous() {
		return apperrors.Unauthorized("Authentication required")
	}
	if id == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", id)
		}
		return apperrors.Internal("Failed to resolve booking", err)
	}

	if booking.UserID != actor.UserID && !actor.Admin {
		return apperrors.Forbidden("Only the booking owner or an admin may cancel this booking")
	}

	path := "id"
	if actor.Admin && booking.UserID != actor.UserID {
		path = "admin"
	}
	return s.cancel(ctx, booking, actor.UserID, path)
}

// CancelByToken is the anonymous capability path: knowing the token is
// sufficient, no identity is consulted.
func (s *bookingService) CancelByToken(ctx context.Context, token string) error {
	booking, err := s.resolveToken(ctx, token)
	if err != nil {
		return err
	}
	return s.cancel(ctx, booking, "token", "token")
}

// cancel runs the shared cancellation path. The state transition and the
// index removal execute under the same admission right used for creation, so
// a cancel and a concurrent create for the same room/date serialize.
func (s *bookingService) cancel(ctx context.Context, booking *model.Booking, actor, path string) error {
	now := s.now()

	if booking.Status == model.StatusCancelled {
		return apperrors.AlreadyCancelled(booking.ID)
	}
	if !booking.CanCancel(now) {
		return apperrors.Forbidden("Booking has already started and can no longer be cancelled")
	}

	key := conflict.Key{RoomID: booking.RoomID, Date: booking.BookingDate}

	release, err := s.index.Acquire(ctx, key, s.cfg.AdmissionLockWait)
	if err != nil {
		if errors.Is(err, conflict.ErrBusy) {
			metrics.IncAdmissionBusy()
			return apperrors.Busy("The booking is contended by another request, retry shortly")
		}
		return apperrors.Internal("Failed to acquire admission lock", err)
	}
	defer release()

	cancelled, err := s.repo.Cancel(ctx, booking.ID, actor, now)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrAlreadyCancelled) {
			return apperrors.AlreadyCancelled(booking.ID)
		}
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", booking.ID)
		}
		return apperrors.Internal("Failed to cancel booking", err)
	}

	s.index.Remove(key, booking.ID)

	metrics.IncBookingCancelled(path)
	s.publisher.Publish(ctx, events.FromBooking(events.TypeBookingCancelled, cancelled))
	s.cfg.Log.Info("Booking cancelled",
		"booking_id", booking.ID,
		"room_id", booking.RoomID,
		"date", booking.BookingDate,
		"cancelled_by", actor,
		"path", path,
	)
	return nil
}

func (s *bookingService) GetByToken(ctx context.Context, token string) (*model.BookingView, error) {
	booking, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	view := model.NewBookingView(booking, "", s.now())
	// The token holder already proved possession; echo it back for the
	// cancellation confirmation page.
	view.CancellationToken = booking.CancellationToken
	return &view, nil
}

func (s *bookingService) resolveToken(ctx context.Context, token string) (*model.Booking, error) {
	if token == "" {
		return nil, apperrors.InvalidInput("Cancellation token cannot be empty")
	}

	booking, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrTokenNotFound) {
			return nil, apperrors.NotFound("Booking")
		}
		return nil, apperrors.Internal("Failed to resolve cancellation token", err)
	}
	return booking, nil
}

func (s *bookingService) ListUserBookings(ctx context.Context, userID, status string, futureOnly bool, limit int, offset int64) ([]model.BookingView, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}

	filter := model.BookingFilter{
		UserID:     userID,
		Status:     normalizeStatusFilter(status),
		FutureOnly: futureOnly,
	}
	return s.list(ctx, filter, userID, limit, offset)
}

func (s *bookingService) ListAllBookings(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]model.BookingView, int64, error) {
	filter.Status = normalizeStatusFilter(filter.Status)
	return s.list(ctx, filter, "", limit, offset)
}

// normalizeStatusFilter defaults to Active; "all" disables the filter.
func normalizeStatusFilter(status string) string {
	switch status {
	case "all":
		return ""
	case "":
		return model.StatusActive
	default:
		return status
	}
}

func (s *bookingService) list(ctx context.Context, filter model.BookingFilter, viewerID string, limit int, offset int64) ([]model.BookingView, int64, error) {
	now := s.now()

	count, err := s.repo.CountList(ctx, filter, now)
	if err != nil {
		s.cfg.Log.Error("Failed to count bookings", "error", err)
		return nil, 0, apperrors.Internal("Failed to count bookings", err)
	}

	bookings, err := s.repo.List(ctx, filter, now, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "error", err)
		return nil, 0, apperrors.Internal("Failed to list bookings", err)
	}

	views := make([]model.BookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, model.NewBookingView(b, viewerID, now))
	}
	return views, count, nil
}

// RebuildIndex reloads the conflict index from the store of record. The
// index is a derived cache; it starts empty and must never be trusted until
// this has run.
func (s *bookingService) RebuildIndex(ctx context.Context) error {
	today := policy.Today(s.now()).Format(model.DateLayout)

	bookings, err := s.repo.FindActiveFromDate(ctx, today)
	if err != nil {
		return apperrors.Internal("Failed to load active bookings for index rebuild", err)
	}

	regs := make([]conflict.Registration, 0, len(bookings))
	for _, b := range bookings {
		startMin, err := model.ParseClock(b.StartTime)
		if err != nil {
			return apperrors.Internal("Corrupt start time in stored booking", err)
		}
		endMin, err := model.ParseClock(b.EndTime)
		if err != nil {
			return apperrors.Internal("Corrupt end time in stored booking", err)
		}
		regs = append(regs, conflict.Registration{
			Key:       conflict.Key{RoomID: b.RoomID, Date: b.BookingDate},
			Interval:  conflict.Interval{Start: startMin, End: endMin},
			BookingID: b.ID,
		})
	}

	if err := s.index.Rebuild(regs); err != nil {
		return apperrors.Internal("Stored bookings violate the non-overlap invariant", err)
	}

	s.cfg.Log.Info("Conflict index rebuilt", "active_bookings", len(regs))
	return nil
}
