package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "roomly/internal/bookings/errors"
	"roomly/pkg/config"
	"roomly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "Bookings"

// BookingRepository is the store of record for bookings. It is the only
// writer of booking state; interval bookkeeping lives in the conflict index.
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByToken(ctx context.Context, token string) (*model.Booking, error)
	FindActiveByRoomAndDate(ctx context.Context, roomID, date string) ([]*model.Booking, error)
	FindActiveFromDate(ctx context.Context, date string) ([]*model.Booking, error)
	FindActiveByDate(ctx context.Context, date string) ([]*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter, now time.Time, limit int, offset int64) ([]*model.Booking, error)
	CountList(ctx context.Context, filter model.BookingFilter, now time.Time) (int64, error)
	Cancel(ctx context.Context, id, actor string, at time.Time) (*model.Booking, error)
	EnsureIndexes(ctx context.Context) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// EnsureIndexes creates the token lookup and calendar query indexes. The
// unique token index is the backstop for the token-to-booking injective
// mapping.
func (r *mongoBookingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "cancellation_token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "room_id", Value: 1},
				{Key: "booking_date", Value: 1},
				{Key: "status", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "status", Value: 1},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrDuplicateToken
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindByToken(ctx context.Context, token string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"cancellation_token": token}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to find booking by token: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindActiveByRoomAndDate(ctx context.Context, roomID, date string) ([]*model.Booking, error) {
	return r.findSorted(ctx, bson.M{
		"room_id":      roomID,
		"booking_date": date,
		"status":       model.StatusActive,
	})
}

// FindActiveFromDate returns every Active booking dated on or after date.
// Used to rebuild the conflict index at startup.
func (r *mongoBookingRepository) FindActiveFromDate(ctx context.Context, date string) ([]*model.Booking, error) {
	return r.findSorted(ctx, bson.M{
		"booking_date": bson.M{"$gte": date},
		"status":       model.StatusActive,
	})
}

func (r *mongoBookingRepository) FindActiveByDate(ctx context.Context, date string) ([]*model.Booking, error) {
	return r.findSorted(ctx, bson.M{
		"booking_date": date,
		"status":       model.StatusActive,
	})
}

func (r *mongoBookingRepository) findSorted(ctx context.Context, filter bson.M) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "booking_date", Value: 1},
		{Key: "start_time", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) List(ctx context.Context, filter model.BookingFilter, now time.Time, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{
			{Key: "booking_date", Value: 1},
			{Key: "start_time", Value: 1},
		}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, buildListFilter(filter, now), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) CountList(ctx context.Context, filter model.BookingFilter, now time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildListFilter(filter, now))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// buildListFilter translates a BookingFilter into a Mongo query. Dates and
// clock times are stored as zero-padded strings, so lexicographic comparison
// matches chronological order.
func buildListFilter(filter model.BookingFilter, now time.Time) bson.M {
	query := bson.M{}

	if filter.RoomID != "" {
		query["room_id"] = filter.RoomID
	}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	dateRange := bson.M{}
	if filter.DateFrom != "" {
		dateRange["$gte"] = filter.DateFrom
	}
	if filter.DateTo != "" {
		dateRange["$lte"] = filter.DateTo
	}
	if len(dateRange) > 0 {
		query["booking_date"] = dateRange
	}

	if filter.FutureOnly {
		today := now.Format(model.DateLayout)
		nowClock := now.Format(model.ClockLayout)
		query["$or"] = []bson.M{
			{"booking_date": bson.M{"$gt": today}},
			{"booking_date": today, "start_time": bson.M{"$gte": nowClock}},
		}
	}

	return query
}

// Cancel performs the Active -> Cancelled transition as a single
// compare-and-set, recording actor and time. It distinguishes "no such
// booking" from "already cancelled".
func (r *mongoBookingRepository) Cancel(ctx context.Context, id, actor string, at time.Time) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"status":       model.StatusCancelled,
			"cancelled_at": at,
			"cancelled_by": actor,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": model.StatusActive},
		update, opts,
	).Decode(&booking)
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	// CAS missed: either the booking does not exist or it left the Active
	// state already.
	var existing model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to check booking state: %w", err)
	}
	return &existing, bookingserrors.ErrAlreadyCancelled
}
