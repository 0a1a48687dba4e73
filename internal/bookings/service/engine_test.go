package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"roomly/internal/bookings/conflict"
	bookingserrors "roomly/internal/bookings/errors"
	"roomly/internal/bookings/policy"
	"roomly/internal/bookings/validator"
	roomrepo "roomly/internal/rooms/repository"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/events"
	"roomly/pkg/logger"
	"roomly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	testRoomID = "c56a4180-65aa-42ec-a945-5fd21dec0538"
	testUserID = "user-1"
)

// Fixed clock for every test: 2026-03-10 12:00 UTC.
var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// Mock booking repository backed by an in-memory map so the admission and
// cancellation flows exercise real state transitions.
type mockBookingRepository struct {
	mu       sync.Mutex
	byID     map[string]*model.Booking
	createFn func(ctx context.Context, booking *model.Booking) error
}

func newMockBookingRepository() *mockBookingRepository {
	return &mockBookingRepository{byID: make(map[string]*model.Booking)}
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFn != nil {
		return m.createFn(ctx, booking)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *booking
	m.byID[booking.ID] = &clone
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (m *mockBookingRepository) FindByToken(ctx context.Context, token string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.byID {
		if b.CancellationToken == token {
			clone := *b
			return &clone, nil
		}
	}
	return nil, bookingserrors.ErrTokenNotFound
}

func (m *mockBookingRepository) FindActiveByRoomAndDate(ctx context.Context, roomID, date string) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.byID {
		if b.Status == model.StatusActive && b.RoomID == roomID && b.BookingDate == date {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *mockBookingRepository) FindActiveFromDate(ctx context.Context, date string) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.byID {
		if b.Status == model.StatusActive && b.BookingDate >= date {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *mockBookingRepository) FindActiveByDate(ctx context.Context, date string) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.byID {
		if b.Status == model.StatusActive && b.BookingDate == date {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *mockBookingRepository) List(ctx context.Context, filter model.BookingFilter, now time.Time, limit int, offset int64) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.byID {
		if filter.UserID != "" && b.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		clone := *b
		out = append(out, &clone)
	}
	return out, nil
}

func (m *mockBookingRepository) CountList(ctx context.Context, filter model.BookingFilter, now time.Time) (int64, error) {
	bookings, _ := m.List(ctx, filter, now, 0, 0)
	return int64(len(bookings)), nil
}

func (m *mockBookingRepository) Cancel(ctx context.Context, id, actor string, at time.Time) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	if b.Status != model.StatusActive {
		return nil, bookingserrors.ErrAlreadyCancelled
	}
	b.Status = model.StatusCancelled
	b.CancelledAt = &at
	b.CancelledBy = actor
	clone := *b
	return &clone, nil
}

func (m *mockBookingRepository) EnsureIndexes(ctx context.Context) error { return nil }

func (m *mockBookingRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type mockRoomRepository struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Room, error)
}

func (m *mockRoomRepository) Create(ctx context.Context, room *model.Room) error { return nil }

func (m *mockRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Room{ID: id, Name: "Meeting Room A", Capacity: 8, IsActive: true}, nil
}

func (m *mockRoomRepository) FindAll(ctx context.Context, filter model.RoomFilter, limit int, offset int64) ([]*model.Room, error) {
	return nil, nil
}

func (m *mockRoomRepository) Count(ctx context.Context, filter model.RoomFilter) (int64, error) {
	return 0, nil
}

func (m *mockRoomRepository) Update(ctx context.Context, id string, updates bson.M) (*model.Room, error) {
	return nil, nil
}

func (m *mockRoomRepository) EnsureIndexes(ctx context.Context) error { return nil }

func testConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:   "error",
		Format:  "json",
		Service: "test",
	})
	return &config.Config{
		Log:               log,
		PublicBaseURL:     "http://localhost:8080",
		AdmissionLockWait: 2 * time.Second,
	}
}

func newTestService(repo *mockBookingRepository, rooms roomrepo.RoomRepository) *bookingService {
	cfg := testConfig()
	if rooms == nil {
		rooms = &mockRoomRepository{}
	}
	return &bookingService{
		repo:  repo,
		rooms: rooms,
		index: conflict.NewIndex(),
		rules: policy.Rules{
			WindowDays:     30,
			ServiceStart:   8 * 60,
			ServiceEnd:     22 * 60,
			GranularityMin: 1,
		},
		validator: validator.NewBookingValidator(cfg.Log),
		publisher: events.NewNopPublisher(),
		cfg:       cfg,
		now:       func() time.Time { return testNow },
	}
}

func createRequest(date, start, end string) *model.BookingCreate {
	return &model.BookingCreate{
		RoomID:      testRoomID,
		BookingDate: date,
		StartTime:   start,
		EndTime:     end,
		Purpose:     "Team sync",
	}
}

func actor() model.Identity {
	return model.Identity{UserID: testUserID, UserName: "Alex"}
}

func TestCreateSuccess(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	result, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.CancellationToken == "" {
		t.Error("expected a cancellation token")
	}
	want := "http://localhost:8080/cancel/" + result.CancellationToken
	if result.CancellationURL != want {
		t.Errorf("expected cancellation URL %s, got %s", want, result.CancellationURL)
	}
	if result.Booking.Status != model.StatusActive {
		t.Errorf("expected status active, got %s", result.Booking.Status)
	}
	if !result.Booking.CanCancel {
		t.Error("a future booking should be cancellable")
	}
	if !result.Booking.IsOwn {
		t.Error("the creator should see the booking as their own")
	}
	if repo.count() != 1 {
		t.Errorf("expected 1 stored booking, got %d", repo.count())
	}
}

func TestCreateAnonymousRejected(t *testing.T) {
	svc := newTestService(newMockBookingRepository(), nil)

	_, err := svc.Create(context.Background(), model.Identity{}, createRequest("2026-03-11", "10:00", "11:00"))
	if !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestCreateInvalidRange(t *testing.T) {
	svc := newTestService(newMockBookingRepository(), nil)

	tests := []struct {
		name       string
		start, end string
	}{
		{"start equals end", "10:00", "10:00"},
		{"start after end", "11:00", "10:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", tt.start, tt.end))
			if !apperrors.IsCode(err, apperrors.CodeInvalidRange) {
				t.Fatalf("expected INVALID_RANGE, got %v", err)
			}
		})
	}
}

func TestCreateWindowBoundary(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	// Exactly 30 days ahead is the last bookable date.
	if _, err := svc.Create(context.Background(), actor(), createRequest("2026-04-09", "10:00", "11:00")); err != nil {
		t.Fatalf("booking on the window boundary should succeed, got %v", err)
	}

	_, err := svc.Create(context.Background(), actor(), createRequest("2026-04-10", "10:00", "11:00"))
	if !apperrors.IsCode(err, apperrors.CodeOutOfWindow) {
		t.Fatalf("expected OUT_OF_WINDOW one day past the boundary, got %v", err)
	}
}

func TestCreateValidationRejected(t *testing.T) {
	svc := newTestService(newMockBookingRepository(), nil)

	req := createRequest("2026-03-11", "10:00", "11:00")
	req.RoomID = "not-a-uuid"
	_, err := svc.Create(context.Background(), actor(), req)
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestCreateRoomChecks(t *testing.T) {
	t.Run("unknown room", func(t *testing.T) {
		rooms := &mockRoomRepository{
			findByIDFunc: func(ctx context.Context, id string) (*model.Room, error) {
				return nil, roomrepo.ErrNotFound
			},
		}
		svc := newTestService(newMockBookingRepository(), rooms)
		_, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00"))
		if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
	})

	t.Run("inactive room", func(t *testing.T) {
		rooms := &mockRoomRepository{
			findByIDFunc: func(ctx context.Context, id string) (*model.Room, error) {
				return &model.Room{ID: id, Name: "Retired Room", IsActive: false}, nil
			},
		}
		svc := newTestService(newMockBookingRepository(), rooms)
		_, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00"))
		if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
			t.Fatalf("expected INVALID_INPUT, got %v", err)
		}
	})
}

func TestCreateOverlapRejected(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	if _, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00")); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	_, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:30", "11:30"))
	if !apperrors.IsCode(err, apperrors.CodeSlotTaken) {
		t.Fatalf("expected SLOT_TAKEN, got %v", err)
	}

	// The losing request must leave no record behind.
	if repo.count() != 1 {
		t.Errorf("expected 1 stored booking after rejected overlap, got %d", repo.count())
	}
}

func TestCreateAdjacentSlots(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	if _, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00")); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	// [10:00, 11:00) and [11:00, 12:00) share only the boundary instant.
	if _, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "11:00", "12:00")); err != nil {
		t.Fatalf("adjacent booking should succeed, got %v", err)
	}
	if repo.count() != 2 {
		t.Errorf("expected 2 stored bookings, got %d", repo.count())
	}
}

func TestCreateSameSlotDifferentRoomOrDate(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	if _, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00")); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	// Same slot, next day.
	if _, err := svc.Create(context.Background(), actor(), createRequest("2026-03-12", "10:00", "11:00")); err != nil {
		t.Fatalf("same slot on another date should succeed, got %v", err)
	}

	// Same slot, another room.
	req := createRequest("2026-03-11", "10:00", "11:00")
	req.RoomID = "f47ac10b-58cc-4372-a567-0e02b2c3d479"
	if _, err := svc.Create(context.Background(), actor(), req); err != nil {
		t.Fatalf("same slot in another room should succeed, got %v", err)
	}
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case apperrors.IsCode(err, apperrors.CodeSlotTaken):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly 1 successful booking, got %d", successes)
	}
	if conflicts != callers-1 {
		t.Errorf("expected %d SLOT_TAKEN rejections, got %d", callers-1, conflicts)
	}
	if repo.count() != 1 {
		t.Errorf("expected 1 stored booking, got %d", repo.count())
	}
}

func TestCancelThenRebook(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	result, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	if err := svc.CancelByID(context.Background(), actor(), result.Booking.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// The freed slot must be immediately available.
	if _, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00")); err != nil {
		t.Fatalf("rebooking a freed slot should succeed, got %v", err)
	}
}

func TestCancelByIDOwnership(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	result, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	stranger := model.Identity{UserID: "user-2", UserName: "Sam"}
	err = svc.CancelByID(context.Background(), stranger, result.Booking.ID)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for a non-owner, got %v", err)
	}

	admin := model.Identity{UserID: "admin-1", UserName: "Root", Admin: true}
	if err := svc.CancelByID(context.Background(), admin, result.Booking.ID); err != nil {
		t.Fatalf("admin cancel should succeed, got %v", err)
	}

	stored, err := repo.FindByID(context.Background(), result.Booking.ID)
	if err != nil {
		t.Fatalf("booking vanished: %v", err)
	}
	if stored.Status != model.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", stored.Status)
	}
	if stored.CancelledBy != "admin-1" {
		t.Errorf("expected cancelled_by admin-1, got %s", stored.CancelledBy)
	}
}

func TestCancelByIDAlreadyCancelled(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	result, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	if err := svc.CancelByID(context.Background(), actor(), result.Booking.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	err = svc.CancelByID(context.Background(), actor(), result.Booking.ID)
	if !apperrors.IsCode(err, apperrors.CodeAlreadyCancelled) {
		t.Fatalf("expected ALREADY_CANCELLED, got %v", err)
	}
}

func TestCancelByIDNotFound(t *testing.T) {
	svc := newTestService(newMockBookingRepository(), nil)

	err := svc.CancelByID(context.Background(), actor(), "missing-id")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestCancelByToken(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	result, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	if err := svc.CancelByToken(context.Background(), result.CancellationToken); err != nil {
		t.Fatalf("cancel by token failed: %v", err)
	}

	stored, err := repo.FindByID(context.Background(), result.Booking.ID)
	if err != nil {
		t.Fatalf("booking vanished: %v", err)
	}
	if stored.Status != model.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", stored.Status)
	}
}

func TestCancelByTokenUnknown(t *testing.T) {
	svc := newTestService(newMockBookingRepository(), nil)

	err := svc.CancelByToken(context.Background(), "unknown-token")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}

	err = svc.CancelByToken(context.Background(), "")
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for an empty token, got %v", err)
	}
}

func TestCancelAfterStartForbidden(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	result, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	// Jump the clock past the booking start.
	svc.now = func() time.Time {
		return time.Date(2026, 3, 11, 10, 30, 0, 0, time.UTC)
	}

	err = svc.CancelByToken(context.Background(), result.CancellationToken)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN after start, got %v", err)
	}

	err = svc.CancelByID(context.Background(), actor(), result.Booking.ID)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN after start, got %v", err)
	}
}

func TestGetByToken(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	result, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	view, err := svc.GetByToken(context.Background(), result.CancellationToken)
	if err != nil {
		t.Fatalf("get by token failed: %v", err)
	}
	if view.CancellationToken != result.CancellationToken {
		t.Error("the token holder should see the token echoed back")
	}
	if !view.CanCancel {
		t.Error("a future booking should be cancellable")
	}
	if view.IsOwn {
		t.Error("the anonymous token path should not mark the booking as own")
	}
}

func TestListUserBookingsStatusDefault(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	first, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "12:00", "13:00")); err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if err := svc.CancelByID(context.Background(), actor(), first.Booking.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	views, count, err := svc.ListUserBookings(context.Background(), testUserID, "", false, 10, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if count != 1 || len(views) != 1 {
		t.Fatalf("default listing should show only active bookings, got count=%d len=%d", count, len(views))
	}

	views, count, err = svc.ListUserBookings(context.Background(), testUserID, "all", false, 10, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if count != 2 || len(views) != 2 {
		t.Fatalf("status=all should show every booking, got count=%d len=%d", count, len(views))
	}
}

func TestRebuildIndexRestoresConflicts(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, nil)

	if _, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:00", "11:00")); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	// Fresh index, as after a process restart.
	svc.index = conflict.NewIndex()
	if err := svc.RebuildIndex(context.Background()); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	_, err := svc.Create(context.Background(), actor(), createRequest("2026-03-11", "10:30", "11:30"))
	if !apperrors.IsCode(err, apperrors.CodeSlotTaken) {
		t.Fatalf("expected SLOT_TAKEN after rebuild, got %v", err)
	}
}
